package ledger

import (
	"testing"

	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlight(t *testing.T) {
	l := newTestLedger(t)

	departure := now.Unix() + 3600

	err := l.RegisterFlight(ownerCall(), owner, "FL1", departure)
	requireLedgerErr(t, err, cm.NotFunded)

	fundAirlines(t, l, 1)

	testCases := []struct {
		code      string
		departure int64
		err       *cm.LedgerErrType
	}{
		{"FL1", departure, nil},
		{"FL1", departure + 60, errType(cm.AlreadyRegistered)},
		{"FL2", now.Unix(), errType(cm.AlreadyDeparted)},
		{"FL3", now.Unix() - 1, errType(cm.AlreadyDeparted)},
		{"FL4", now.Unix() + 1, nil},
	}

	for _, tc := range testCases {
		err := l.RegisterFlight(ownerCall(), owner, tc.code, tc.departure)
		if tc.err == nil {
			if err != nil {
				t.Fatalf("%s: %v", tc.code, err)
			}
			continue
		}
		requireLedgerErr(t, err, *tc.err)
	}

	require.True(t, l.IsFlight(NewFlightKey(owner, "FL1")))
	require.False(t, l.IsFlight(NewFlightKey(owner, "FL2")))
	require.False(t, l.IsFlight(NewFlightKey(stranger, "FL1")))

	f, ok := l.Flight(NewFlightKey(owner, "FL1"))
	require.True(t, ok)
	require.Equal(t, departure, f.Departure)
	require.Equal(t, Unknown, f.Status)

	flights := l.Flights()
	require.Len(t, flights, 2)
	require.Equal(t, "FL1", flights[0].Code)
	require.Equal(t, "FL4", flights[1].Code)
}

func errType(t cm.LedgerErrType) *cm.LedgerErrType {
	return &t
}
