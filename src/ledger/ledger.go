package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/sirupsen/logrus"
)

// Ledger is the insurance state machine. Entities are kept in maps keyed by
// their stable identifiers and are only reachable through Ledger methods.
type Ledger struct {
	mu sync.RWMutex

	params Params

	owner       common.Address
	operational bool
	authorized  map[common.Address]bool

	airlines    map[common.Address]*airline
	fundedCount int

	flights     map[FlightKey]*flight
	flightOrder []FlightKey
	policies    map[FlightKey][]*policy
	credits     map[common.Address]*big.Int

	oracles      map[common.Address]*oracle
	requests     map[RequestKey]*statusRequest
	requestOrder []RequestKey
	nonce        uint64
	source       IndexSource

	treasury   *big.Int
	transferor Transferor

	events []Event
	logger *logrus.Entry
}

// Option configures optional collaborators of a Ledger.
type Option func(*Ledger)

// WithIndexSource replaces the KeccakSource used to draw oracle indexes.
func WithIndexSource(source IndexSource) Option {
	return func(l *Ledger) {
		l.source = source
	}
}

// WithTransferor sets the collaborator that moves withdrawn credit out of the
// ledger. Defaults to a fresh Vault.
func WithTransferor(t Transferor) Option {
	return func(l *Ledger) {
		l.transferor = t
	}
}

// NewLedger creates an operational ledger owned by owner. The owner is also
// registered as the first airline, pending funding, so that its first Fund
// call bootstraps the federation.
func NewLedger(owner common.Address, params Params, logger *logrus.Entry, opts ...Option) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	l := &Ledger{
		params:      params,
		owner:       owner,
		operational: true,
		authorized:  make(map[common.Address]bool),
		airlines:    make(map[common.Address]*airline),
		flights:     make(map[FlightKey]*flight),
		policies:    make(map[FlightKey][]*policy),
		credits:     make(map[common.Address]*big.Int),
		oracles:     make(map[common.Address]*oracle),
		requests:    make(map[RequestKey]*statusRequest),
		source:      KeccakSource{},
		treasury:    new(big.Int),
		logger:      logger.WithField("component", "ledger"),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.transferor == nil {
		l.transferor = NewVault()
	}

	l.airlines[owner] = newAirline(owner, PendingFunding)

	return l, nil
}

// Params returns the rules the ledger applies.
func (l *Ledger) Params() Params {
	return l.params
}

// Owner returns the address allowed to toggle the operational flag and manage
// authorized callers.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Treasury returns the funds currently held by the ledger: stakes, fees and
// premiums received, minus the credit withdrawn by passengers.
func (l *Ledger) Treasury() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return copyAmount(l.treasury)
}

/*******************************************************************************
* Access Controller                                                            *
*******************************************************************************/

func (l *Ledger) requireOperational() error {
	if !l.operational {
		return cm.NewLedgerErr(cm.NotOperational, "")
	}
	return nil
}

func (l *Ledger) requireAuthorized(caller common.Address) error {
	if caller != l.owner && !l.authorized[caller] {
		return cm.NewLedgerErr(cm.Unauthorized, caller.Hex())
	}
	return nil
}

func (l *Ledger) requireOwner(caller common.Address) error {
	if caller != l.owner {
		return cm.NewLedgerErr(cm.Unauthorized, caller.Hex())
	}
	return nil
}

// guard runs the checks shared by every mutating entry point.
func (l *Ledger) guard(call Call) error {
	if err := l.requireOperational(); err != nil {
		return err
	}
	return l.requireAuthorized(call.Caller)
}

// SetOperational turns the ledger on or off. Only the owner can call it, and
// it remains available while the ledger is not operational.
func (l *Ledger) SetOperational(call Call, operational bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(call.Caller); err != nil {
		return err
	}

	l.operational = operational

	l.logger.WithField("operational", operational).Info("SetOperational")

	return nil
}

// AuthorizeCaller adds addr to the set of gateways allowed to submit
// operations.
func (l *Ledger) AuthorizeCaller(call Call, addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOperational(); err != nil {
		return err
	}
	if err := l.requireOwner(call.Caller); err != nil {
		return err
	}

	l.authorized[addr] = true

	l.logger.WithField("caller", addr.Hex()).Debug("AuthorizeCaller")

	return nil
}

// RevokeCaller removes addr from the authorized set. The owner cannot be
// revoked.
func (l *Ledger) RevokeCaller(call Call, addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOperational(); err != nil {
		return err
	}
	if err := l.requireOwner(call.Caller); err != nil {
		return err
	}

	delete(l.authorized, addr)

	l.logger.WithField("caller", addr.Hex()).Debug("RevokeCaller")

	return nil
}

// IsOperational ...
func (l *Ledger) IsOperational() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.operational
}

// IsAuthorized returns true if addr may submit mutating operations.
func (l *Ledger) IsAuthorized(addr common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.requireAuthorized(addr) == nil
}
