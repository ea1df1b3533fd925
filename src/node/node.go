package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/events"
	"github.com/mosaicnetworks/surety/src/node/state"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/mosaicnetworks/surety/src/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrShutdown is returned to transactions submitted to a node that is shut
// down.
var ErrShutdown = errors.New("node is shut down")

// submitBuffer is the capacity of the transaction queue.
const submitBuffer = 1024

// Node defines a Surety node
type Node struct {
	state.Manager

	conf   *Config
	logger *logrus.Entry

	store store.Store
	proxy proxy.AppProxy
	bus   events.Bus

	metrics  *Metrics
	registry *prometheus.Registry

	submitCh   chan *TxPromise
	shutdownCh chan struct{}
	stopOnce   sync.Once

	// commitLock is held while a block is committed, so that Shutdown does
	// not close the store under the loop.
	commitLock sync.Mutex

	statsLock    sync.RWMutex
	lastBlock    int
	lastSnapshot int
	committedTxs int
	rejectedTxs  int
	start        time.Time
}

// NewNode is a factory method that returns a Node instance. bus may be nil, in
// which case events are not published.
func NewNode(conf *Config,
	store store.Store,
	proxy proxy.AppProxy,
	bus events.Bus,
) *Node {
	if conf.Clock == nil {
		conf.Clock = time.Now
	}
	if conf.Registry == nil {
		conf.Registry = prometheus.NewRegistry()
	}
	if conf.BlockSize <= 0 {
		conf.BlockSize = 1
	}

	node := Node{
		conf:         conf,
		logger:       conf.Logger.WithField("component", "node"),
		store:        store,
		proxy:        proxy,
		bus:          bus,
		metrics:      NewMetrics(conf.Registry),
		registry:     conf.Registry,
		submitCh:     make(chan *TxPromise, submitBuffer),
		shutdownCh:   make(chan struct{}),
		lastBlock:    -1,
		lastSnapshot: -1,
	}

	node.SetState(state.Starting)

	return &node
}

// Init intialises the node, replaying the store if Bootstrap is set.
func (n *Node) Init() error {
	if n.conf.Bootstrap {
		n.logger.Debug("Bootstrap")
		if err := n.Bootstrap(); err != nil {
			return err
		}
	}

	n.start = time.Now()
	n.SetState(state.Running)

	return nil
}

// Bootstrap restores the application from the last stored snapshot and
// replays the blocks committed after it. Every replayed block must produce
// the state hash it was stored with.
func (n *Node) Bootstrap() error {
	lastBlock := n.store.LastBlockIndex()
	lastSnapshot := n.store.LastSnapshotIndex()

	from := 0

	if lastSnapshot >= 0 {
		snapshot, err := n.store.GetSnapshot(lastSnapshot)
		if err != nil {
			return err
		}

		if _, err := n.proxy.Restore(snapshot); err != nil {
			return fmt.Errorf("restoring snapshot %d: %v", lastSnapshot, err)
		}

		from = lastSnapshot + 1
	}

	for i := from; i <= lastBlock; i++ {
		block, err := n.store.GetBlock(i)
		if err != nil {
			return err
		}

		resp, err := n.proxy.CommitBlock(*block)
		if err != nil {
			return fmt.Errorf("replaying block %d: %v", i, err)
		}

		if !bytes.Equal(resp.StateHash, block.StateHash) {
			return fmt.Errorf("replaying block %d: state hash %s does not match %s",
				i, cm.EncodeToString(resp.StateHash), cm.EncodeToString(block.StateHash))
		}
	}

	n.statsLock.Lock()
	n.lastBlock = lastBlock
	n.lastSnapshot = lastSnapshot
	n.statsLock.Unlock()

	n.metrics.LastBlock.Set(float64(lastBlock))

	n.logger.WithFields(logrus.Fields{
		"last_block":    lastBlock,
		"last_snapshot": lastSnapshot,
		"replayed":      lastBlock - from + 1,
	}).Info("Bootstrapped")

	return nil
}

// RunAsync calls Run in a goroutine tracked by the state manager.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")
	n.GoFunc(n.Run)
}

// Run invokes the main loop of the node. It returns when the node is shut
// down.
func (n *Node) Run() {
	n.logger.Info("RUNNING")

	for {
		select {
		case p := <-n.submitCh:
			batch := n.collect([]*TxPromise{p})
			n.commit(batch)
		case <-n.shutdownCh:
			return
		}
	}
}

// collect fills a batch with queued transactions until it reaches BlockSize or
// BlockTimeout expires.
func (n *Node) collect(batch []*TxPromise) []*TxPromise {
	var timeout <-chan time.Time
	if n.conf.BlockTimeout > 0 {
		timer := time.NewTimer(n.conf.BlockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for len(batch) < n.conf.BlockSize {
		if timeout == nil {
			select {
			case p := <-n.submitCh:
				batch = append(batch, p)
				continue
			default:
				return batch
			}
		}

		select {
		case p := <-n.submitCh:
			batch = append(batch, p)
		case <-timeout:
			return batch
		case <-n.shutdownCh:
			return batch
		}
	}

	return batch
}

func (n *Node) commit(batch []*TxPromise) {
	n.commitLock.Lock()
	defer n.commitLock.Unlock()

	if n.GetState() == state.Shutdown || n.stopped() {
		for _, p := range batch {
			p.Respond(nil, ErrShutdown)
		}
		return
	}

	txs := make([][]byte, len(batch))
	for i, p := range batch {
		txs[i] = p.Tx
	}

	block := proxy.NewBlock(n.LastBlockIndex()+1, n.conf.Clock(), txs)

	resp, err := n.proxy.CommitBlock(*block)
	if err == nil && len(resp.Receipts) != len(batch) {
		err = fmt.Errorf("expected %d receipts, got %d", len(batch), len(resp.Receipts))
	}
	if err != nil {
		n.logger.WithError(err).WithField("block", block.Index).Error("CommitBlock")
		for _, p := range batch {
			p.Respond(nil, err)
		}
		return
	}

	block.StateHash = resp.StateHash

	// The application already applied the block. If it cannot be stored the
	// node stops, because a restart could not replay it.
	if err := n.store.SetBlock(block); err != nil {
		n.logger.WithError(err).WithField("block", block.Index).Error("SetBlock")
		err = fmt.Errorf("storing block %d: %v", block.Index, err)
		for _, p := range batch {
			p.Respond(nil, err)
		}
		n.stop()
		return
	}

	n.statsLock.Lock()
	n.lastBlock = block.Index
	n.statsLock.Unlock()

	n.metrics.Blocks.Inc()
	n.metrics.LastBlock.Set(float64(block.Index))

	if n.conf.SnapshotInterval > 0 && (block.Index+1)%n.conf.SnapshotInterval == 0 {
		n.snapshot(block.Index)
	}

	rejected := 0
	for i := range resp.Receipts {
		receipt := &resp.Receipts[i]

		n.metrics.observeReceipt(receipt)
		if !receipt.Succeeded() {
			rejected++
		}

		n.publish(receipt)

		batch[i].Respond(receipt, nil)
	}

	n.statsLock.Lock()
	n.committedTxs += len(batch)
	n.rejectedTxs += rejected
	n.statsLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"block":      block.Index,
		"txs":        len(batch),
		"rejected":   rejected,
		"state_hash": cm.EncodeToString(block.StateHash),
	}).Debug("Committed block")
}

// stop ends the main loop. Queued and later transactions get ErrShutdown.
func (n *Node) stop() {
	n.stopOnce.Do(func() {
		close(n.shutdownCh)
	})
}

func (n *Node) stopped() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

func (n *Node) snapshot(blockIndex int) {
	snapshot, err := n.proxy.GetSnapshot(blockIndex)
	if err != nil {
		n.logger.WithError(err).WithField("block", blockIndex).Error("GetSnapshot")
		return
	}

	if err := n.store.SetSnapshot(blockIndex, snapshot); err != nil {
		n.logger.WithError(err).WithField("block", blockIndex).Error("SetSnapshot")
		return
	}

	n.statsLock.Lock()
	n.lastSnapshot = blockIndex
	n.statsLock.Unlock()
}

func (n *Node) publish(receipt *proxy.Receipt) {
	if n.bus == nil {
		return
	}
	for _, ev := range receipt.Events {
		if err := n.bus.Publish(ev); err != nil {
			n.logger.WithError(err).WithField("event", ev.Type.String()).Warn("Publish")
		}
	}
}

// SubmitTx queues a transaction and waits until it is committed. A receipt is
// returned even if the ledger rejected the transaction; the error return is
// reserved to failures to commit it at all.
func (n *Node) SubmitTx(ctx context.Context, tx proxy.Tx) (*proxy.Receipt, error) {
	if n.GetState() == state.Shutdown || n.stopped() {
		return nil, ErrShutdown
	}

	raw, err := tx.Marshal()
	if err != nil {
		return nil, err
	}

	p := NewTxPromise(raw)

	select {
	case n.submitCh <- p:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.shutdownCh:
		return nil, ErrShutdown
	}

	select {
	case resp := <-p.RespCh:
		return resp.Receipt, resp.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.shutdownCh:
		return nil, ErrShutdown
	}
}

// Shutdown stops the loop and closes the event bus and the store. Errors from
// both are returned together.
func (n *Node) Shutdown() error {
	if n.GetState() == state.Shutdown {
		return nil
	}

	n.logger.Debug("Shutdown")

	n.SetState(state.Shutdown)

	n.stop()

	n.WaitRoutines()

	n.commitLock.Lock()
	defer n.commitLock.Unlock()

	var result error

	if n.bus != nil {
		if err := n.bus.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing bus: %v", err))
		}
	}

	if err := n.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing store: %v", err))
	}

	return result
}

// LastBlockIndex returns the index of the last committed block, or -1.
func (n *Node) LastBlockIndex() int {
	n.statsLock.RLock()
	defer n.statsLock.RUnlock()

	return n.lastBlock
}

// GetBlock returns a committed block.
func (n *Node) GetBlock(blockIndex int) (*proxy.Block, error) {
	return n.store.GetBlock(blockIndex)
}

// Registry returns the registry holding the node metrics.
func (n *Node) Registry() *prometheus.Registry {
	return n.registry
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.statsLock.RLock()
	defer n.statsLock.RUnlock()

	var txPerSecond float64
	if !n.start.IsZero() {
		if elapsed := time.Since(n.start).Seconds(); elapsed > 0 {
			txPerSecond = float64(n.committedTxs) / elapsed
		}
	}

	return map[string]string{
		"last_block_index":        strconv.Itoa(n.lastBlock),
		"last_snapshot_index":     strconv.Itoa(n.lastSnapshot),
		"committed_transactions":  strconv.Itoa(n.committedTxs),
		"rejected_transactions":   strconv.Itoa(n.rejectedTxs),
		"transaction_pool":        strconv.Itoa(len(n.submitCh)),
		"transactions_per_second": strconv.FormatFloat(txPerSecond, 'f', 2, 64),
		"state":                   n.GetState().String(),
	}
}
