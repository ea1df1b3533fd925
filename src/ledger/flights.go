package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/sirupsen/logrus"
)

type flight struct {
	key       FlightKey
	departure int64
	status    StatusCode
}

// FlightInfo is a read-only copy of a registered flight.
type FlightInfo struct {
	Airline   common.Address
	Code      string
	Departure int64
	Status    StatusCode
}

// Key ...
func (f FlightInfo) Key() FlightKey {
	return FlightKey{Airline: f.Airline, Code: f.Code}
}

func (f *flight) info() FlightInfo {
	return FlightInfo{
		Airline:   f.key.Airline,
		Code:      f.key.Code,
		Departure: f.departure,
		Status:    f.status,
	}
}

// RegisterFlight registers a future flight for a funded airline. Departure is
// a unix timestamp in seconds and must be strictly after the call time.
func (l *Ledger) RegisterFlight(call Call, airline common.Address, code string, departure int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return err
	}

	if l.airlineStatus(airline) != Funded {
		return cm.NewLedgerErr(cm.NotFunded, airline.Hex())
	}

	key := NewFlightKey(airline, code)

	if _, ok := l.flights[key]; ok {
		return cm.NewLedgerErr(cm.AlreadyRegistered, key.String())
	}

	if departure <= call.Time.Unix() {
		return cm.NewLedgerErr(cm.AlreadyDeparted, key.String())
	}

	l.flights[key] = &flight{
		key:       key,
		departure: departure,
		status:    Unknown,
	}
	l.flightOrder = append(l.flightOrder, key)

	l.emit(Event{
		Type:      FlightRegistered,
		Airline:   airline,
		Flight:    code,
		Timestamp: departure,
	})

	l.logger.WithFields(logrus.Fields{
		"flight":    key.String(),
		"departure": departure,
	}).Debug("RegisterFlight")

	return nil
}

// IsFlight ...
func (l *Ledger) IsFlight(key FlightKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.flights[key]
	return ok
}

// Flight returns a copy of a registered flight.
func (l *Ledger) Flight(key FlightKey) (FlightInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, ok := l.flights[key]
	if !ok {
		return FlightInfo{}, false
	}
	return f.info(), true
}

// Flights lists registered flights in registration order. It is the source of
// truth for the flight catalog.
func (l *Ledger) Flights() []FlightInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res := make([]FlightInfo, 0, len(l.flightOrder))
	for _, k := range l.flightOrder {
		res = append(res, l.flights[k].info())
	}
	return res
}
