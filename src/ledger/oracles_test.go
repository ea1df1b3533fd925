package ledger

import (
	"testing"

	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/stretchr/testify/require"
)

func TestRegisterOracle(t *testing.T) {
	l := newTestLedger(t, WithIndexSource(NewSequenceSource(4, 4, 5, 16)))

	o := address(20)

	_, err := l.RegisterOracle(ownerCall(), o, Finney(999))
	requireLedgerErr(t, err, cm.InsufficientFee)

	_, err = l.GetMyIndexes(o)
	requireLedgerErr(t, err, cm.NotRegistered)

	indexes, err := l.RegisterOracle(ownerCall(), o, Ether(1))
	require.NoError(t, err)
	require.Equal(t, [3]uint8{4, 5, 6}, indexes)
	require.True(t, l.IsOracle(o))
	requireAmount(t, Ether(1), l.Treasury())

	mine, err := l.GetMyIndexes(o)
	require.NoError(t, err)
	require.Equal(t, indexes, mine)

	_, err = l.RegisterOracle(ownerCall(), o, Ether(1))
	requireLedgerErr(t, err, cm.AlreadyRegistered)
	requireAmount(t, Ether(1), l.Treasury())
}

func TestRegisterOracleCollisions(t *testing.T) {
	l := newTestLedger(t, WithIndexSource(NewSequenceSource(2)))

	indexes, err := l.RegisterOracle(ownerCall(), address(20), Ether(1))
	require.NoError(t, err)
	require.Equal(t, [3]uint8{2, 0, 1}, indexes)
}

func TestRegisterOracleKeccak(t *testing.T) {
	l := newTestLedger(t)

	for i := int64(0); i < 20; i++ {
		indexes, err := l.RegisterOracle(ownerCall(), address(200+i), Ether(1))
		require.NoError(t, err)

		seen := make(map[uint8]bool)
		for _, idx := range indexes {
			require.Less(t, idx, l.Params().IndexSpace)
			require.False(t, seen[idx], "duplicate index %d in %v", idx, indexes)
			seen[idx] = true
		}
	}
}

func TestKeccakSourceDeterministic(t *testing.T) {
	s := KeccakSource{}
	for n := uint64(0); n < 50; n++ {
		a := s.Index(passenger, n, 10)
		b := s.Index(passenger, n, 10)
		if a != b {
			t.Fatalf("draw %d not deterministic: %d != %d", n, a, b)
		}
		if a >= 10 {
			t.Fatalf("draw %d out of range: %d", n, a)
		}
	}
}

func TestFetchFlightStatus(t *testing.T) {
	l := newTestLedger(t, WithIndexSource(NewSequenceSource(1, 2, 3, 7, 7)))
	fundAirlines(t, l, 1)

	_, err := l.RegisterOracle(ownerCall(), address(20), Ether(1))
	require.NoError(t, err)
	l.DrainEvents()

	timestamp := now.Unix() + 3600

	index, err := l.FetchFlightStatus(NewCall(stranger, now), passenger, owner, "FL1", timestamp)
	requireLedgerErr(t, err, cm.Unauthorized)

	index, err = l.FetchFlightStatus(ownerCall(), passenger, owner, "FL1", timestamp)
	require.NoError(t, err)
	require.Equal(t, uint8(7), index)

	again, err := l.FetchFlightStatus(ownerCall(), passenger, owner, "FL1", timestamp)
	require.NoError(t, err)
	require.Equal(t, index, again)

	key := RequestKey{Index: 7, Airline: owner, Code: "FL1", Timestamp: timestamp}

	req, ok := l.Request(key)
	require.True(t, ok)
	require.False(t, req.Finalized)
	require.Equal(t, passenger, req.Requester)
	require.Equal(t, []RequestKey{key}, l.OpenRequests())

	events := l.DrainEvents()
	require.Len(t, events, 2)
	for _, ev := range events {
		require.Equal(t, OracleRequested, ev.Type)
		require.Equal(t, key, ev.RequestKey())
	}
}
