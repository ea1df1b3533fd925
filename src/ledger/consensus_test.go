package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/stretchr/testify/require"
)

type consensusFixture struct {
	l         *Ledger
	oracles   []common.Address
	key       RequestKey
	departure int64
}

// newConsensusFixture registers n oracles that all hold indexes 7, 8 and 9, a
// flight FL1 and an open request on index 7.
func newConsensusFixture(t *testing.T, n int) *consensusFixture {
	return newConsensusFixtureWith(t, n)
}

func newConsensusFixtureWith(t *testing.T, n int, opts ...Option) *consensusFixture {
	opts = append([]Option{WithIndexSource(NewSequenceSource(7, 8, 9))}, opts...)
	l := newTestLedger(t, opts...)
	fundAirlines(t, l, 1)

	departure := now.Unix() + 3600
	require.NoError(t, l.RegisterFlight(ownerCall(), owner, "FL1", departure))

	oracles := []common.Address{}
	for i := 0; i < n; i++ {
		o := address(int64(300 + i))
		indexes, err := l.RegisterOracle(ownerCall(), o, Ether(1))
		require.NoError(t, err)
		require.Equal(t, [3]uint8{7, 8, 9}, indexes)
		oracles = append(oracles, o)
	}

	index, err := l.FetchFlightStatus(ownerCall(), passenger, owner, "FL1", departure)
	require.NoError(t, err)
	require.Equal(t, uint8(7), index)

	return &consensusFixture{
		l:         l,
		oracles:   oracles,
		key:       RequestKey{Index: 7, Airline: owner, Code: "FL1", Timestamp: departure},
		departure: departure,
	}
}

func (f *consensusFixture) submit(o common.Address, index uint8, status StatusCode) (Submission, error) {
	return f.l.SubmitOracleResponse(ownerCall(), o, index, owner, "FL1", f.departure, status)
}

func TestSubmitOracleResponseErrors(t *testing.T) {
	f := newConsensusFixture(t, 1)

	_, err := f.submit(stranger, 7, OnTime)
	requireLedgerErr(t, err, cm.NotRegistered)

	_, err = f.submit(f.oracles[0], 1, OnTime)
	requireLedgerErr(t, err, cm.IndexMismatch)

	_, err = f.submit(f.oracles[0], 7, StatusCode(15))
	requireLedgerErr(t, err, cm.InvalidStatus)

	// index 8 is held by the oracle but nobody asked on it
	_, err = f.submit(f.oracles[0], 8, OnTime)
	requireLedgerErr(t, err, cm.NoSuchRequest)

	_, err = f.l.SubmitOracleResponse(ownerCall(), f.oracles[0], 7, owner, "FL1", f.departure+1, OnTime)
	requireLedgerErr(t, err, cm.NoSuchRequest)

	_, err = f.l.SubmitOracleResponse(NewCall(stranger, now), f.oracles[0], 7, owner, "FL1", f.departure, OnTime)
	requireLedgerErr(t, err, cm.Unauthorized)
}

func TestSubmitOracleResponseFinalize(t *testing.T) {
	f := newConsensusFixture(t, 4)

	sub, err := f.submit(f.oracles[0], 7, LateAirline)
	require.NoError(t, err)
	require.Equal(t, Submission{Recorded: true}, sub)

	// duplicates are absorbed, even with another status
	sub, err = f.submit(f.oracles[0], 7, LateAirline)
	require.NoError(t, err)
	require.Equal(t, Submission{}, sub)

	sub, err = f.submit(f.oracles[0], 7, OnTime)
	require.NoError(t, err)
	require.Equal(t, Submission{}, sub)

	sub, err = f.submit(f.oracles[1], 7, LateAirline)
	require.NoError(t, err)
	require.False(t, sub.Finalized)

	sub, err = f.submit(f.oracles[2], 7, LateAirline)
	require.NoError(t, err)
	require.Equal(t, Submission{Recorded: true, Finalized: true, Status: LateAirline}, sub)

	fl, ok := f.l.Flight(NewFlightKey(owner, "FL1"))
	require.True(t, ok)
	require.Equal(t, LateAirline, fl.Status)

	// a late response changes nothing
	sub, err = f.submit(f.oracles[3], 7, OnTime)
	require.NoError(t, err)
	require.Equal(t, Submission{Finalized: true, Status: LateAirline}, sub)

	req, ok := f.l.Request(f.key)
	require.True(t, ok)
	require.True(t, req.Finalized)
	require.Equal(t, LateAirline, req.Status)
	require.Len(t, req.Responses[LateAirline], 3)
	require.Len(t, req.Responses[OnTime], 0)
	require.Empty(t, f.l.OpenRequests())

	fl, _ = f.l.Flight(NewFlightKey(owner, "FL1"))
	require.Equal(t, LateAirline, fl.Status)

	finalized := 0
	for _, ev := range f.l.DrainEvents() {
		if ev.Type == FlightStatusFinalized {
			finalized++
		}
	}
	require.Equal(t, 1, finalized)
}

func TestSubmitOracleResponseSplitVotes(t *testing.T) {
	f := newConsensusFixture(t, 5)

	statuses := []StatusCode{OnTime, LateWeather, OnTime, LateWeather}
	for i, s := range statuses {
		sub, err := f.submit(f.oracles[i], 7, s)
		require.NoError(t, err)
		require.False(t, sub.Finalized, "response %d", i)
	}

	sub, err := f.submit(f.oracles[4], 8, LateWeather)
	requireLedgerErr(t, err, cm.NoSuchRequest)

	sub, err = f.submit(f.oracles[4], 7, LateWeather)
	require.NoError(t, err)
	require.True(t, sub.Finalized)
	require.Equal(t, LateWeather, sub.Status)

	fl, _ := f.l.Flight(NewFlightKey(owner, "FL1"))
	require.Equal(t, LateWeather, fl.Status)
}

func TestSubmitOracleResponseUnknownFlight(t *testing.T) {
	f := newConsensusFixture(t, 3)

	index, err := f.l.FetchFlightStatus(ownerCall(), passenger, owner, "GHOST", f.departure)
	require.NoError(t, err)

	for _, o := range f.oracles {
		_, err := f.l.SubmitOracleResponse(ownerCall(), o, index, owner, "GHOST", f.departure, LateAirline)
		require.NoError(t, err)
	}

	req, ok := f.l.Request(RequestKey{Index: index, Airline: owner, Code: "GHOST", Timestamp: f.departure})
	require.True(t, ok)
	require.True(t, req.Finalized)
	require.False(t, f.l.IsFlight(NewFlightKey(owner, "GHOST")))
}
