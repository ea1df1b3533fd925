package nats

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// TestNatsBus needs a running NATS server. Its url is read from SURETY_NATS_URL
// and defaults to nats.DefaultURL.
func TestNatsBus(t *testing.T) {
	url := os.Getenv("SURETY_NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	logger := cm.NewTestEntry(t, cm.TestLogLevel)

	pub, err := NewBus(url, logger)
	if err != nil {
		t.Skipf("no NATS server at %s: %v", url, err)
	}
	defer pub.Close()

	sub, err := NewBus(url, logger)
	require.NoError(t, err)
	defer sub.Close()

	ch, cancel := sub.Subscribe()
	defer cancel()

	ev := ledger.Event{
		Type:    ledger.CreditWithdrawn,
		Account: common.BigToAddress(big.NewInt(4)),
		Amount:  ledger.Finney(1500).String(),
	}

	require.NoError(t, pub.Publish(ev))

	select {
	case got := <-ch:
		require.Equal(t, ev, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}
