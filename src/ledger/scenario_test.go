package ledger

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestInsuranceScenario(t *testing.T) {
	vault := NewVault()
	l := newTestLedger(t, WithTransferor(vault), WithIndexSource(NewSequenceSource(0, 1, 2)))

	airline := address(10)
	p := address(11)

	// owner bootstraps the federation and admits airline A
	require.NoError(t, l.Fund(ownerCall(), owner, Ether(10)))
	adm, err := l.RegisterAirline(ownerCall(), airline, owner)
	require.NoError(t, err)
	require.True(t, adm.Registered)

	require.NoError(t, l.Fund(ownerCall(), airline, Ether(10)))
	require.True(t, l.IsAirline(airline))

	departure := now.Add(time.Hour).Unix()
	require.NoError(t, l.RegisterFlight(ownerCall(), airline, "FL1", departure))

	require.NoError(t, l.Buy(ownerCall(), airline, "FL1", p, Ether(1)))

	oracles := []common.Address{}
	for i := int64(0); i < 3; i++ {
		o := address(1000 + i)
		_, err := l.RegisterOracle(ownerCall(), o, Ether(1))
		require.NoError(t, err)
		oracles = append(oracles, o)
	}

	index, err := l.FetchFlightStatus(ownerCall(), p, airline, "FL1", departure)
	require.NoError(t, err)

	responders := 0
	for _, o := range oracles {
		indexes, err := l.GetMyIndexes(o)
		require.NoError(t, err)
		if !containsIndex(indexes[:], index) {
			continue
		}
		sub, err := l.SubmitOracleResponse(ownerCall(), o, index, airline, "FL1", departure, LateAirline)
		require.NoError(t, err)
		responders++
		if sub.Finalized {
			break
		}
	}
	require.Equal(t, 3, responders)

	requireAmount(t, Finney(1500), l.Credits(p))

	amount, err := l.Pay(ownerCall(), p)
	require.NoError(t, err)
	requireAmount(t, Finney(1500), amount)
	requireAmount(t, Finney(1500), vault.Withdrawn(p))
	require.Equal(t, 0, l.Credits(p).Sign())

	types := []EventType{}
	for _, ev := range l.DrainEvents() {
		if ev.Type == OracleReported {
			continue
		}
		if ev.Type == InsureeCredited || ev.Type == CreditWithdrawn || ev.Type == FlightStatusFinalized {
			types = append(types, ev.Type)
		}
	}
	require.Equal(t, []EventType{FlightStatusFinalized, InsureeCredited, CreditWithdrawn}, types)
}
