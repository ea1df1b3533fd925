package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/sirupsen/logrus"
)

type policy struct {
	flight    FlightKey
	passenger common.Address
	premium   *big.Int
	credited  bool
}

// PolicyInfo is a read-only copy of an insurance policy.
type PolicyInfo struct {
	Flight    FlightKey
	Passenger common.Address
	Premium   *big.Int
	Credited  bool
}

func (p *policy) info() PolicyInfo {
	return PolicyInfo{
		Flight:    p.flight,
		Passenger: p.passenger,
		Premium:   copyAmount(p.premium),
		Credited:  p.credited,
	}
}

// Transferor moves funds withdrawn by a passenger out of the ledger.
type Transferor interface {
	Transfer(to common.Address, amount *big.Int) error
}

// Vault is an in-memory Transferor that accumulates the amounts sent to every
// account.
type Vault struct {
	sync.Mutex
	withdrawn map[common.Address]*big.Int
	total     *big.Int
}

// NewVault ...
func NewVault() *Vault {
	return &Vault{
		withdrawn: make(map[common.Address]*big.Int),
		total:     new(big.Int),
	}
}

// Transfer implements Transferor.
func (v *Vault) Transfer(to common.Address, amount *big.Int) error {
	v.Lock()
	defer v.Unlock()

	w, ok := v.withdrawn[to]
	if !ok {
		w = new(big.Int)
		v.withdrawn[to] = w
	}
	w.Add(w, amount)
	v.total.Add(v.total, amount)

	return nil
}

// Withdrawn returns the total transferred to an account.
func (v *Vault) Withdrawn(to common.Address) *big.Int {
	v.Lock()
	defer v.Unlock()

	return copyAmount(v.withdrawn[to])
}

// Total returns the total transferred to all accounts.
func (v *Vault) Total() *big.Int {
	v.Lock()
	defer v.Unlock()

	return copyAmount(v.total)
}

func (l *Ledger) findPolicy(key FlightKey, passenger common.Address) *policy {
	for _, p := range l.policies[key] {
		if p.passenger == passenger {
			return p
		}
	}
	return nil
}

// Buy insures passenger on a registered flight for premium, which must be
// positive and at most PremiumCap. A passenger holds at most one policy per
// flight.
func (l *Ledger) Buy(call Call, airline common.Address, code string, passenger common.Address, premium *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return err
	}

	key := NewFlightKey(airline, code)

	if _, ok := l.flights[key]; !ok {
		return cm.NewLedgerErr(cm.NoSuchFlight, key.String())
	}

	if premium == nil || premium.Sign() <= 0 {
		return cm.NewLedgerErr(cm.ZeroPayment, passenger.Hex())
	}

	if premium.Cmp(l.params.PremiumCap) > 0 {
		return cm.NewLedgerErr(cm.PaymentTooLarge, premium.String())
	}

	if l.findPolicy(key, passenger) != nil {
		return cm.NewLedgerErr(cm.AlreadyInsured, passenger.Hex())
	}

	l.policies[key] = append(l.policies[key], &policy{
		flight:    key,
		passenger: passenger,
		premium:   copyAmount(premium),
	})
	l.treasury.Add(l.treasury, premium)

	l.emit(Event{
		Type:    InsurancePurchased,
		Airline: airline,
		Flight:  code,
		Account: passenger,
		Amount:  premium.String(),
	})

	l.logger.WithFields(logrus.Fields{
		"flight":    key.String(),
		"passenger": passenger.Hex(),
		"premium":   premium.String(),
	}).Debug("Buy")

	return nil
}

// creditInsurees credits every policy of a flight that was not credited
// before with Payout(premium).
func (l *Ledger) creditInsurees(key FlightKey) {
	for _, p := range l.policies[key] {
		if p.credited {
			continue
		}
		p.credited = true

		amount := l.params.Payout(p.premium)

		c, ok := l.credits[p.passenger]
		if !ok {
			c = new(big.Int)
			l.credits[p.passenger] = c
		}
		c.Add(c, amount)

		l.emit(Event{
			Type:    InsureeCredited,
			Airline: key.Airline,
			Flight:  key.Code,
			Account: p.passenger,
			Amount:  amount.String(),
		})

		l.logger.WithFields(logrus.Fields{
			"flight":    key.String(),
			"passenger": p.passenger.Hex(),
			"amount":    amount.String(),
		}).Info("Insuree credited")
	}
}

// Pay withdraws the credit of a passenger. The balance is zeroed and the
// treasury debited before the Transferor is called, without holding the ledger
// lock, so a Transferor calling back into the ledger sees a zero balance and
// a second Pay fails with NoCredit. If the transfer fails the amount is
// credited back. It returns the amount transferred.
func (l *Ledger) Pay(call Call, passenger common.Address) (*big.Int, error) {
	amount, err := l.debit(call, passenger)
	if err != nil {
		return nil, err
	}

	if err := l.transferor.Transfer(passenger, amount); err != nil {
		l.mu.Lock()
		l.credits[passenger] = new(big.Int).Add(copyAmount(l.credits[passenger]), amount)
		l.treasury.Add(l.treasury, amount)
		l.mu.Unlock()

		l.logger.WithError(err).WithField("passenger", passenger.Hex()).Error("Pay transfer")
		return nil, err
	}

	l.mu.Lock()
	l.emit(Event{
		Type:    CreditWithdrawn,
		Account: passenger,
		Amount:  amount.String(),
	})
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"passenger": passenger.Hex(),
		"amount":    amount.String(),
	}).Info("Pay")

	return amount, nil
}

// debit zeroes the credit of a passenger and takes it out of the treasury.
func (l *Ledger) debit(call Call, passenger common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return nil, err
	}

	c, ok := l.credits[passenger]
	if !ok || c.Sign() == 0 {
		return nil, cm.NewLedgerErr(cm.NoCredit, passenger.Hex())
	}

	if c.Cmp(l.treasury) > 0 {
		return nil, cm.NewLedgerErr(cm.InsufficientFunds, c.String())
	}

	amount := copyAmount(c)
	delete(l.credits, passenger)
	l.treasury.Sub(l.treasury, amount)

	return amount, nil
}

// IsInsuree returns true if passenger holds a policy on the flight.
func (l *Ledger) IsInsuree(key FlightKey, passenger common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.findPolicy(key, passenger) != nil
}

// Policy returns a copy of the policy a passenger holds on a flight.
func (l *Ledger) Policy(key FlightKey, passenger common.Address) (PolicyInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p := l.findPolicy(key, passenger)
	if p == nil {
		return PolicyInfo{}, false
	}
	return p.info(), true
}

// Policies lists the policies of a flight in purchase order.
func (l *Ledger) Policies(key FlightKey) []PolicyInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res := make([]PolicyInfo, 0, len(l.policies[key]))
	for _, p := range l.policies[key] {
		res = append(res, p.info())
	}
	return res
}

// Credits returns the amount owed to a passenger.
func (l *Ledger) Credits(passenger common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return copyAmount(l.credits[passenger])
}
