package node

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/events"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/mosaicnetworks/surety/src/proxy/inmem"
	"github.com/mosaicnetworks/surety/src/store"
	"github.com/mosaicnetworks/surety/src/surety"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	passenger = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	genesis   = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	departure = genesis.Add(time.Hour).Unix()
	flight    = ledger.NewFlightKey(owner, "ND1309")
)

// modSource draws nonce mod n. It only depends on the ledger nonce, which is
// part of snapshots, so replays from a snapshot draw the same indexes.
type modSource struct {
	n uint64
}

func (s modSource) Index(account common.Address, nonce uint64, space uint8) uint8 {
	return uint8(nonce%s.n) % space
}

type testApp struct {
	ledger *ledger.Ledger
	state  *surety.State
}

func newTestApp(t *testing.T) *testApp {
	logger := cm.NewTestEntry(t, cm.TestLogLevel)

	l, err := ledger.NewLedger(owner,
		ledger.DefaultParams(),
		logger,
		ledger.WithIndexSource(modSource{n: 3}))
	require.NoError(t, err)

	return &testApp{
		ledger: l,
		state:  surety.NewState(l, logger),
	}
}

func newTestNode(t *testing.T, s store.Store, app *testApp, bus events.Bus, bootstrap bool) *Node {
	conf := TestConfig(t)
	conf.BlockTimeout = 0
	conf.SnapshotInterval = 4
	conf.Bootstrap = bootstrap
	conf.Clock = func() time.Time { return genesis }

	node := NewNode(conf, s, inmem.NewInmemProxy(app.state, conf.Logger), bus)
	require.NoError(t, node.Init())
	node.RunAsync()

	return node
}

func submit(t *testing.T, node *Node, tx proxy.Tx) *proxy.Receipt {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := node.SubmitTx(ctx, tx)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	return receipt
}

func mustApply(t *testing.T, node *Node, tx proxy.Tx) *proxy.Receipt {
	receipt := submit(t, node, tx)
	require.True(t, receipt.Succeeded(), "%s: %s", tx.Type, receipt.Err)
	return receipt
}

func oracleAddress(i int) common.Address {
	return common.BytesToAddress([]byte{0x0f, byte(i)})
}

// runPayoutScenario commits ten single transaction blocks that end with a
// LateAirline payout credited to passenger.
func runPayoutScenario(t *testing.T, node *Node) {
	mustApply(t, node, proxy.NewFundTx(owner, owner, ledger.Ether(10)))
	mustApply(t, node, proxy.NewRegisterFlightTx(owner, owner, flight.Code, departure))
	mustApply(t, node, proxy.NewBuyTx(owner, flight, passenger, ledger.Ether(1)))

	for i := 0; i < 3; i++ {
		r := mustApply(t, node, proxy.NewRegisterOracleTx(owner, oracleAddress(i), ledger.Ether(1)))
		require.Equal(t, "0,1,2", r.Result)
	}

	r := mustApply(t, node, proxy.NewFetchFlightStatusTx(owner, passenger, owner, flight.Code, departure))
	require.Equal(t, "0", r.Result)

	for i := 0; i < 3; i++ {
		r = mustApply(t, node, proxy.NewSubmitOracleResponseTx(owner, oracleAddress(i), 0, flight, departure, ledger.LateAirline))
	}
	require.Equal(t, ledger.LateAirline.String(), r.Result)
}

func TestSubmitTx(t *testing.T) {
	app := newTestApp(t)
	node := newTestNode(t, store.NewInmemStore(), app, nil, false)
	defer node.Shutdown()

	runPayoutScenario(t, node)

	assert.Equal(t, 9, node.LastBlockIndex())
	assert.Equal(t, 0, app.ledger.Credits(passenger).Cmp(ledger.Finney(1500)))

	block, err := node.GetBlock(9)
	require.NoError(t, err)
	assert.Equal(t, genesis.UnixNano(), block.Timestamp)
	assert.Equal(t, app.state.StateHash(), block.StateHash)

	stats := node.GetStats()
	assert.Equal(t, "9", stats["last_block_index"])
	assert.Equal(t, "7", stats["last_snapshot_index"])
	assert.Equal(t, "10", stats["committed_transactions"])
	assert.Equal(t, "0", stats["rejected_transactions"])
	assert.Equal(t, "Running", stats["state"])
}

func TestRejectedTx(t *testing.T) {
	app := newTestApp(t)
	node := newTestNode(t, store.NewInmemStore(), app, nil, false)
	defer node.Shutdown()

	receipt := submit(t, node, proxy.NewBuyTx(owner, flight, passenger, ledger.Ether(1)))
	require.False(t, receipt.Succeeded())
	assert.Equal(t, cm.NoSuchFlight.String(), receipt.ErrType)
	assert.True(t, cm.IsLedger(receipt.Error(), cm.NoSuchFlight))
	assert.Empty(t, receipt.Events)

	stranger := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	receipt = submit(t, node, proxy.NewFundTx(stranger, owner, ledger.Ether(10)))
	assert.True(t, cm.IsLedger(receipt.Error(), cm.Unauthorized))

	// rejected transactions are still committed
	assert.Equal(t, 1, node.LastBlockIndex())
	assert.Equal(t, "2", node.GetStats()["rejected_transactions"])
	assert.Equal(t, float64(1), testutil.ToFloat64(node.metrics.Txs.WithLabelValues("Buy", cm.NoSuchFlight.String())))
}

func TestBatching(t *testing.T) {
	app := newTestApp(t)

	conf := TestConfig(t)
	conf.BlockSize = 5
	conf.BlockTimeout = 200 * time.Millisecond
	conf.Clock = func() time.Time { return genesis }

	node := NewNode(conf, store.NewInmemStore(), inmem.NewInmemProxy(app.state, conf.Logger), nil)
	require.NoError(t, node.Init())
	node.RunAsync()
	defer node.Shutdown()

	mustApply(t, node, proxy.NewFundTx(owner, owner, ledger.Ether(10)))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := node.SubmitTx(context.Background(), proxy.NewRegisterOracleTx(owner, oracleAddress(i), ledger.Ether(1)))
			if assert.NoError(t, err) {
				assert.True(t, receipt.Succeeded())
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "6", node.GetStats()["committed_transactions"])
	assert.True(t, node.LastBlockIndex() < 5, "transactions should share blocks")

	for i := 0; i < 5; i++ {
		assert.True(t, app.ledger.IsOracle(oracleAddress(i)))
	}
}

func TestPublishEvents(t *testing.T) {
	app := newTestApp(t)
	bus := events.NewInmemBus(cm.NewTestEntry(t, cm.TestLogLevel))

	ch, cancel := bus.Subscribe()
	defer cancel()

	node := newTestNode(t, store.NewInmemStore(), app, bus, false)
	defer node.Shutdown()

	runPayoutScenario(t, node)

	seen := map[ledger.EventType]int{}
	timeout := time.After(5 * time.Second)
	for seen[ledger.InsureeCredited] == 0 {
		select {
		case ev := <-ch:
			seen[ev.Type]++
			if ev.Type == ledger.OracleRequested {
				assert.Equal(t, uint8(0), ev.Index)
				assert.Equal(t, owner, ev.Airline)
				assert.Equal(t, flight.Code, ev.Flight)
				assert.Equal(t, departure, ev.Timestamp)
			}
		case <-timeout:
			t.Fatalf("timeout waiting for events, got %v", seen)
		}
	}

	assert.Equal(t, 1, seen[ledger.OracleRequested])
	assert.Equal(t, 3, seen[ledger.OracleReported])
	assert.Equal(t, 1, seen[ledger.FlightStatusFinalized])
}

func TestMetrics(t *testing.T) {
	app := newTestApp(t)
	node := newTestNode(t, store.NewInmemStore(), app, nil, false)
	defer node.Shutdown()

	runPayoutScenario(t, node)

	assert.Equal(t, float64(10), testutil.ToFloat64(node.metrics.Blocks))
	assert.Equal(t, float64(9), testutil.ToFloat64(node.metrics.LastBlock))
	assert.Equal(t, 1.5e18, testutil.ToFloat64(node.metrics.Payouts))
	assert.Equal(t, float64(3), testutil.ToFloat64(node.metrics.Txs.WithLabelValues("RegisterOracle", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(node.metrics.Events.WithLabelValues("InsureeCredited")))

	families, err := node.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	logger := cm.NewTestEntry(t, cm.TestLogLevel)

	bs, err := store.NewBadgerStore(100, dir, logger)
	require.NoError(t, err)

	app := newTestApp(t)
	node := newTestNode(t, bs, app, nil, false)
	runPayoutScenario(t, node)
	stateHash := app.state.StateHash()
	require.NoError(t, node.Shutdown())

	bs, err = store.NewBadgerStore(100, dir, logger)
	require.NoError(t, err)
	require.Equal(t, 9, bs.LastBlockIndex())
	require.Equal(t, 7, bs.LastSnapshotIndex())

	replayed := newTestApp(t)
	node = newTestNode(t, bs, replayed, nil, true)
	defer node.Shutdown()

	assert.Equal(t, stateHash, replayed.state.StateHash())
	assert.Equal(t, 9, node.LastBlockIndex())
	assert.Equal(t, 0, replayed.ledger.Credits(passenger).Cmp(ledger.Finney(1500)))
	assert.True(t, replayed.ledger.IsOracle(oracleAddress(2)))

	r := mustApply(t, node, proxy.NewPayTx(owner, passenger))
	assert.Equal(t, ledger.Finney(1500).String(), r.Result)
	assert.Equal(t, 10, node.LastBlockIndex())
}

func TestBootstrapHashMismatch(t *testing.T) {
	s := store.NewInmemStore()

	app := newTestApp(t)
	node := newTestNode(t, s, app, nil, false)
	mustApply(t, node, proxy.NewFundTx(owner, owner, ledger.Ether(10)))

	block, err := s.GetBlock(0)
	require.NoError(t, err)
	block.StateHash = []byte("tampered")

	conf := TestConfig(t)
	other := NewNode(conf, s, inmem.NewInmemProxy(newTestApp(t).state, conf.Logger), nil)
	require.Error(t, other.Bootstrap())

	require.NoError(t, node.Shutdown())
}

type closeErrStore struct {
	*store.InmemStore
}

func (s closeErrStore) Close() error {
	return errors.New("store boom")
}

type setBlockErrStore struct {
	*store.InmemStore
}

func (s setBlockErrStore) SetBlock(block *proxy.Block) error {
	return errors.New("disk full")
}

func TestSetBlockFailureStopsNode(t *testing.T) {
	app := newTestApp(t)
	node := newTestNode(t, setBlockErrStore{store.NewInmemStore()}, app, nil, false)
	defer node.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := node.SubmitTx(ctx, proxy.NewFundTx(owner, owner, ledger.Ether(10)))
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, -1, node.LastBlockIndex())
	assert.Equal(t, "0", node.GetStats()["committed_transactions"])

	_, err = node.SubmitTx(ctx, proxy.NewRegisterFlightTx(owner, owner, flight.Code, departure))
	assert.Equal(t, ErrShutdown, err)

	assert.NoError(t, node.Shutdown())
}

type closeErrBus struct {
	*events.InmemBus
}

func (b closeErrBus) Close() error {
	return errors.New("bus boom")
}

func TestShutdown(t *testing.T) {
	app := newTestApp(t)
	bus := closeErrBus{events.NewInmemBus(cm.NewTestEntry(t, cm.TestLogLevel))}
	node := newTestNode(t, closeErrStore{store.NewInmemStore()}, app, bus, false)

	err := node.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store boom")
	assert.Contains(t, err.Error(), "bus boom")

	// second call is a no-op
	assert.NoError(t, node.Shutdown())

	_, err = node.SubmitTx(context.Background(), proxy.NewFundTx(owner, owner, ledger.Ether(10)))
	assert.Equal(t, ErrShutdown, err)
	assert.Equal(t, "Shutdown", node.GetStats()["state"])
}
