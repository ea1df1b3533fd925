package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType ...
type EventType uint8

const (
	// OracleRequested is emitted when a status request bucket is opened or
	// reused. Oracle agents holding Index answer it.
	OracleRequested EventType = iota
	// OracleReported is emitted for every oracle response that is recorded.
	OracleReported
	// FlightStatusFinalized is emitted once per request, when it finalizes.
	FlightStatusFinalized
	// InsureeCredited is emitted for every policy credited by a payout.
	InsureeCredited
	// AirlineRegistered is emitted when a candidate reaches PendingFunding.
	AirlineRegistered
	// AirlineFunded ...
	AirlineFunded
	// FlightRegistered ...
	FlightRegistered
	// InsurancePurchased ...
	InsurancePurchased
	// CreditWithdrawn ...
	CreditWithdrawn
)

// String returns the string representation of an EventType
func (t EventType) String() string {
	switch t {
	case OracleRequested:
		return "OracleRequested"
	case OracleReported:
		return "OracleReported"
	case FlightStatusFinalized:
		return "FlightStatusFinalized"
	case InsureeCredited:
		return "InsureeCredited"
	case AirlineRegistered:
		return "AirlineRegistered"
	case AirlineFunded:
		return "AirlineFunded"
	case FlightRegistered:
		return "FlightRegistered"
	case InsurancePurchased:
		return "InsurancePurchased"
	case CreditWithdrawn:
		return "CreditWithdrawn"
	default:
		return "Unknown"
	}
}

// Event is a notification produced by a ledger operation. Only the fields
// relevant to the Type are set. Account holds the oracle, passenger or
// proposer involved, and Amount is a decimal count of wei.
type Event struct {
	Type      EventType
	Index     uint8          `json:",omitempty"`
	Airline   common.Address `json:",omitempty"`
	Flight    string         `json:",omitempty"`
	Timestamp int64          `json:",omitempty"`
	Status    StatusCode     `json:",omitempty"`
	Account   common.Address `json:",omitempty"`
	Amount    string         `json:",omitempty"`
}

// RequestKey returns the key of the request an oracle event refers to.
func (e Event) RequestKey() RequestKey {
	return RequestKey{
		Index:     e.Index,
		Airline:   e.Airline,
		Code:      e.Flight,
		Timestamp: e.Timestamp,
	}
}

// AmountWei parses Amount.
func (e Event) AmountWei() *big.Int {
	res, ok := new(big.Int).SetString(e.Amount, 10)
	if !ok {
		return new(big.Int)
	}
	return res
}

func (l *Ledger) emit(ev Event) {
	l.events = append(l.events, ev)
}

// DrainEvents returns the events emitted since the last call and forgets them.
// The host calls it after every operation to route events to subscribers.
func (l *Ledger) DrainEvents() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.events
	l.events = nil
	return events
}
