package inmem

import (
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/sirupsen/logrus"
)

// InmemProxy implements the AppProxy interface natively, forwarding every call
// to a ProxyHandler.
type InmemProxy struct {
	handler proxy.ProxyHandler
	logger  *logrus.Entry
}

// NewInmemProxy instantiates an InmemProxy from a set of handlers.
// If no logger, a new one is created
func NewInmemProxy(handler proxy.ProxyHandler,
	logger *logrus.Entry) *InmemProxy {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemProxy{
		handler: handler,
		logger:  logger.WithField("component", "proxy"),
	}
}

// CommitBlock calls the commitHandler
func (p *InmemProxy) CommitBlock(block proxy.Block) (proxy.CommitResponse, error) {
	commitResponse, err := p.handler.CommitHandler(block)

	p.logger.WithFields(logrus.Fields{
		"block":      block.Index,
		"txs":        len(block.Transactions),
		"receipts":   len(commitResponse.Receipts),
		"state_hash": commitResponse.StateHash,
		"err":        err,
	}).Debug("InmemProxy.CommitBlock")

	return commitResponse, err
}

// GetSnapshot calls the snapshotHandler
func (p *InmemProxy) GetSnapshot(blockIndex int) ([]byte, error) {
	snapshot, err := p.handler.SnapshotHandler(blockIndex)

	p.logger.WithFields(logrus.Fields{
		"block": blockIndex,
		"size":  len(snapshot),
		"err":   err,
	}).Debug("InmemProxy.GetSnapshot")

	return snapshot, err
}

// Restore calls the restoreHandler
func (p *InmemProxy) Restore(snapshot []byte) ([]byte, error) {
	stateHash, err := p.handler.RestoreHandler(snapshot)

	p.logger.WithFields(logrus.Fields{
		"state_hash": stateHash,
		"err":        err,
	}).Debug("InmemProxy.Restore")

	return stateHash, err
}
