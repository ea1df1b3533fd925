package events

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/stretchr/testify/require"
)

func testEvent() ledger.Event {
	return ledger.Event{
		Type:      ledger.OracleRequested,
		Index:     7,
		Airline:   common.BigToAddress(big.NewInt(10)),
		Flight:    "FL1",
		Timestamp: 1600003600,
		Account:   common.BigToAddress(big.NewInt(11)),
	}
}

func TestMarshal(t *testing.T) {
	ev := testEvent()

	data, err := Marshal(ev)
	require.NoError(t, err)

	ev2, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, ev, ev2)

	credit := ledger.Event{
		Type:    ledger.InsureeCredited,
		Account: common.BigToAddress(big.NewInt(11)),
		Amount:  ledger.Finney(1500).String(),
	}
	data, err = Marshal(credit)
	require.NoError(t, err)
	credit2, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, 0, credit2.AmountWei().Cmp(ledger.Finney(1500)))

	_, err = Unmarshal([]byte("nope"))
	require.Error(t, err)
}

func receive(t *testing.T, ch <-chan ledger.Event) ledger.Event {
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return ledger.Event{}
}

func TestInmemBus(t *testing.T) {
	bus := NewInmemBus(cm.NewTestEntry(t, cm.TestLogLevel))

	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	require.NoError(t, bus.Publish(testEvent()))

	require.Equal(t, testEvent(), receive(t, ch1))
	require.Equal(t, testEvent(), receive(t, ch2))

	cancel1()
	cancel1()
	_, ok := <-ch1
	require.False(t, ok)

	require.NoError(t, bus.Publish(testEvent()))
	require.Equal(t, testEvent(), receive(t, ch2))

	require.NoError(t, bus.Close())
	_, ok = <-ch2
	require.False(t, ok)

	ch3, _ := bus.Subscribe()
	_, ok = <-ch3
	require.False(t, ok)
}

func TestInmemBusLaggingSubscriber(t *testing.T) {
	bus := NewInmemBus(cm.NewTestEntry(t, cm.TestLogLevel))
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < SubscriberBuffer+10; i++ {
		require.NoError(t, bus.Publish(testEvent()))
	}

	require.Len(t, ch, SubscriberBuffer)
}
