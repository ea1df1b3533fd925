package ledger

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/sirupsen/logrus"
)

type airline struct {
	address common.Address
	status  AirlineStatus
	votes   map[common.Address]bool
	stake   *big.Int
}

func newAirline(address common.Address, status AirlineStatus) *airline {
	return &airline{
		address: address,
		status:  status,
		votes:   make(map[common.Address]bool),
		stake:   new(big.Int),
	}
}

func (a *airline) voters() []common.Address {
	res := make([]common.Address, 0, len(a.votes))
	for v := range a.votes {
		res = append(res, v)
	}
	sortAddresses(res)
	return res
}

// Admission reports the outcome of a RegisterAirline call.
type Admission struct {
	// Registered is true when the candidate reached PendingFunding.
	Registered bool
	// Votes is the number of distinct proposers who voted for the candidate.
	// It stays 0 for candidates admitted during bootstrap.
	Votes int
}

func (l *Ledger) airlineStatus(addr common.Address) AirlineStatus {
	a, ok := l.airlines[addr]
	if !ok {
		return Unregistered
	}
	return a.status
}

// RegisterAirline proposes candidate on behalf of proposer, which must be
// funded. While fewer than BootstrapAirlines airlines are funded the candidate
// is admitted directly. Past that, the proposer's vote is recorded, once, and
// the candidate is admitted when votes*2 >= FundedAirlineCount.
func (l *Ledger) RegisterAirline(call Call, candidate, proposer common.Address) (Admission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return Admission{}, err
	}

	if l.airlineStatus(proposer) != Funded {
		return Admission{}, cm.NewLedgerErr(cm.NotFunded, proposer.Hex())
	}

	a, ok := l.airlines[candidate]
	if ok && a.status != Unregistered {
		return Admission{}, cm.NewLedgerErr(cm.AlreadyRegistered, candidate.Hex())
	}
	if !ok {
		a = newAirline(candidate, Unregistered)
		l.airlines[candidate] = a
	}

	logger := l.logger.WithFields(logrus.Fields{
		"candidate": candidate.Hex(),
		"proposer":  proposer.Hex(),
		"funded":    l.fundedCount,
	})

	if l.fundedCount < l.params.BootstrapAirlines {
		l.admit(a, proposer)
		logger.Debug("RegisterAirline bootstrap")
		return Admission{Registered: true}, nil
	}

	a.votes[proposer] = true
	votes := len(a.votes)

	if votes*2 >= l.fundedCount {
		l.admit(a, proposer)
		logger.WithField("votes", votes).Debug("RegisterAirline consensus reached")
		return Admission{Registered: true, Votes: votes}, nil
	}

	logger.WithField("votes", votes).Debug("RegisterAirline vote recorded")

	return Admission{Votes: votes}, nil
}

func (l *Ledger) admit(a *airline, proposer common.Address) {
	a.status = PendingFunding
	l.emit(Event{
		Type:    AirlineRegistered,
		Airline: a.address,
		Account: proposer,
	})
}

// Fund stakes amount for an airline pending funding. The airline becomes
// Funded and starts counting toward the quorum.
func (l *Ledger) Fund(call Call, addr common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return err
	}

	a, ok := l.airlines[addr]
	if !ok || a.status != PendingFunding {
		return cm.NewLedgerErr(cm.NotRegistered, addr.Hex())
	}

	if amount == nil || amount.Cmp(l.params.MinStake) < 0 {
		return cm.NewLedgerErr(cm.InsufficientStake, addr.Hex())
	}

	a.status = Funded
	a.stake = copyAmount(amount)
	l.fundedCount++
	l.treasury.Add(l.treasury, amount)

	l.emit(Event{
		Type:    AirlineFunded,
		Airline: addr,
		Amount:  amount.String(),
	})

	l.logger.WithFields(logrus.Fields{
		"airline": addr.Hex(),
		"stake":   amount.String(),
		"funded":  l.fundedCount,
	}).Debug("Fund")

	return nil
}

// IsAirline returns true if addr is a funded airline.
func (l *Ledger) IsAirline(addr common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.airlineStatus(addr) == Funded
}

// AirlineStatus ...
func (l *Ledger) AirlineStatus(addr common.Address) AirlineStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.airlineStatus(addr)
}

// FundedAirlineCount returns the number of funded airlines.
func (l *Ledger) FundedAirlineCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.fundedCount
}

// Votes returns the distinct proposers who voted for a candidate.
func (l *Ledger) Votes(candidate common.Address) []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.airlines[candidate]
	if !ok {
		return nil
	}
	return a.voters()
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
