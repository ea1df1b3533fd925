package oracle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/crypto/keys"
	"github.com/mosaicnetworks/surety/src/events"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/sirupsen/logrus"
)

// DefaultSubmitTimeout bounds the time spent waiting for the receipt of one
// response.
const DefaultSubmitTimeout = 10 * time.Second

// Submitter commits transactions to the ledger. It is implemented by
// node.Node.
type Submitter interface {
	SubmitTx(ctx context.Context, tx proxy.Tx) (*proxy.Receipt, error)
}

// IndexReader reads the indexes assigned to an oracle. It is implemented by
// ledger.Ledger.
type IndexReader interface {
	GetMyIndexes(addr common.Address) ([3]uint8, error)
}

// Identity is an oracle run by the agent.
type Identity struct {
	Address    common.Address
	Position   int
	Indexes    [3]uint8
	Registered bool
}

// Holds returns true if the oracle was assigned index.
func (o Identity) Holds(index uint8) bool {
	if !o.Registered {
		return false
	}
	for _, i := range o.Indexes {
		if i == index {
			return true
		}
	}
	return false
}

// Agent relays flight status requests to the oracles it runs.
type Agent struct {
	gateway   common.Address
	submitter Submitter
	reader    IndexReader
	bus       events.Bus
	policy    Policy

	oracleLock sync.RWMutex
	oracles    []*Identity

	pool    *workerpool.WorkerPool
	timeout time.Duration

	cancel func()
	done   chan struct{}

	logger *logrus.Entry
}

// NewAgent creates an Agent running one oracle per key. Transactions are
// submitted on behalf of gateway, which must be authorized on the ledger.
func NewAgent(gateway common.Address,
	oracleKeys []*ecdsa.PrivateKey,
	submitter Submitter,
	reader IndexReader,
	bus events.Bus,
	policy Policy,
	workers int,
	logger *logrus.Entry) *Agent {

	if policy == nil {
		policy = DefaultTable
	}
	if workers < 1 {
		workers = 1
	}

	oracles := make([]*Identity, len(oracleKeys))
	for i, k := range oracleKeys {
		oracles[i] = &Identity{
			Address:  keys.Address(&k.PublicKey),
			Position: i,
		}
	}

	return &Agent{
		gateway:   gateway,
		submitter: submitter,
		reader:    reader,
		bus:       bus,
		policy:    policy,
		oracles:   oracles,
		pool:      workerpool.New(workers),
		timeout:   DefaultSubmitTimeout,
		logger:    logger.WithField("component", "oracle-agent"),
	}
}

// Register registers every oracle with the ledger, paying fee, and reads back
// its indexes. Oracles registered by a previous run are only read back.
// Oracles that fail to register are left out and their errors returned
// together.
func (a *Agent) Register(ctx context.Context, fee *big.Int) error {
	var result error

	for _, o := range a.snapshotOracles() {
		if err := a.register(ctx, o, fee); err != nil {
			a.logger.WithError(err).WithField("oracle", o.Address.Hex()).Warn("Error registering oracle")
			result = multierror.Append(result, fmt.Errorf("oracle %s: %v", o.Address.Hex(), err))
		}
	}

	return result
}

func (a *Agent) register(ctx context.Context, o *Identity, fee *big.Int) error {
	receipt, err := a.submitter.SubmitTx(ctx, proxy.NewRegisterOracleTx(a.gateway, o.Address, fee))
	if err != nil {
		return err
	}

	if err := receipt.Error(); err != nil && !cm.IsLedger(err, cm.AlreadyRegistered) {
		return err
	}

	indexes, err := a.reader.GetMyIndexes(o.Address)
	if err != nil {
		return err
	}

	a.oracleLock.Lock()
	o.Indexes = indexes
	o.Registered = true
	a.oracleLock.Unlock()

	a.logger.WithFields(logrus.Fields{
		"oracle":  o.Address.Hex(),
		"indexes": indexes,
	}).Debug("Oracle registered")

	return nil
}

// Oracles returns a copy of the identities run by the agent.
func (a *Agent) Oracles() []Identity {
	a.oracleLock.RLock()
	defer a.oracleLock.RUnlock()

	res := make([]Identity, len(a.oracles))
	for i, o := range a.oracles {
		res[i] = *o
	}
	return res
}

func (a *Agent) snapshotOracles() []*Identity {
	a.oracleLock.RLock()
	defer a.oracleLock.RUnlock()

	return append([]*Identity{}, a.oracles...)
}

// Start subscribes to the bus and handles requests until Stop is called or
// the bus is closed.
func (a *Agent) Start() {
	ch, cancel := a.bus.Subscribe()

	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		for ev := range ch {
			if ev.Type == ledger.OracleRequested {
				a.HandleRequest(ev)
			}
		}
	}()

	a.logger.WithField("oracles", len(a.oracles)).Info("Oracle agent started")
}

// HandleRequest queues one response per oracle holding the requested index.
func (a *Agent) HandleRequest(ev ledger.Event) {
	key := ev.RequestKey()

	logger := a.logger.WithField("request", key.String())

	responders := 0
	for _, o := range a.Oracles() {
		if !o.Holds(key.Index) {
			continue
		}
		responders++

		o := o
		a.pool.Submit(func() {
			a.respond(o, key)
		})
	}

	logger.WithField("responders", responders).Debug("OracleRequested")
}

func (a *Agent) respond(o Identity, key ledger.RequestKey) {
	status := a.policy.Status(o.Position, key)

	logger := a.logger.WithFields(logrus.Fields{
		"oracle":  o.Address.Hex(),
		"request": key.String(),
		"status":  status.String(),
	})

	tx := proxy.NewSubmitOracleResponseTx(a.gateway, o.Address, key.Index, key.Flight(), key.Timestamp, status)

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	receipt, err := a.submitter.SubmitTx(ctx, tx)
	if err == nil {
		err = receipt.Error()
	}
	if err != nil {
		logger.WithError(err).Warn("Error submitting oracle response")
		return
	}

	logger.WithField("result", receipt.Result).Debug("Oracle response submitted")
}

// Stop cancels the subscription and waits for queued responses to complete.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	a.pool.StopWait()

	a.logger.Debug("Oracle agent stopped")
}
