package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// StatusCode is the outcome oracles report for a flight.
type StatusCode uint8

const (
	// Unknown is the status of a flight nobody reported on yet.
	Unknown StatusCode = 0
	// OnTime ...
	OnTime StatusCode = 10
	// LateAirline is the only status that triggers a payout.
	LateAirline StatusCode = 20
	// LateWeather ...
	LateWeather StatusCode = 30
	// LateTechnical ...
	LateTechnical StatusCode = 40
	// LateOther ...
	LateOther StatusCode = 50
)

// StatusCodes lists every valid status code.
var StatusCodes = []StatusCode{Unknown, OnTime, LateAirline, LateWeather, LateTechnical, LateOther}

// Valid returns true if s is one of the defined status codes.
func (s StatusCode) Valid() bool {
	switch s {
	case Unknown, OnTime, LateAirline, LateWeather, LateTechnical, LateOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of a StatusCode
func (s StatusCode) String() string {
	switch s {
	case Unknown:
		return "Unknown"
	case OnTime:
		return "OnTime"
	case LateAirline:
		return "LateAirline"
	case LateWeather:
		return "LateWeather"
	case LateTechnical:
		return "LateTechnical"
	case LateOther:
		return "LateOther"
	default:
		return fmt.Sprintf("StatusCode(%d)", uint8(s))
	}
}

// AirlineStatus is the admission state of an airline.
type AirlineStatus uint8

const (
	// Unregistered airlines are unknown to the ledger.
	Unregistered AirlineStatus = iota
	// PendingFunding airlines were admitted but have not staked yet.
	PendingFunding
	// Funded airlines count toward the consensus quorum.
	Funded
)

// String returns the string representation of an AirlineStatus
func (s AirlineStatus) String() string {
	switch s {
	case Unregistered:
		return "Unregistered"
	case PendingFunding:
		return "PendingFunding"
	case Funded:
		return "Funded"
	default:
		return "Unknown"
	}
}

// FlightKey uniquely identifies a flight.
type FlightKey struct {
	Airline common.Address
	Code    string
}

// NewFlightKey ...
func NewFlightKey(airline common.Address, code string) FlightKey {
	return FlightKey{Airline: airline, Code: code}
}

// String ...
func (k FlightKey) String() string {
	return fmt.Sprintf("%s/%s", k.Airline.Hex(), k.Code)
}

// RequestKey identifies a status request bucket. Repeated requests for the same
// tuple aggregate into the same bucket.
type RequestKey struct {
	Index     uint8
	Airline   common.Address
	Code      string
	Timestamp int64
}

// Flight returns the key of the flight the request is about.
func (k RequestKey) Flight() FlightKey {
	return FlightKey{Airline: k.Airline, Code: k.Code}
}

// String ...
func (k RequestKey) String() string {
	return fmt.Sprintf("%d/%s/%s/%d", k.Index, k.Airline.Hex(), k.Code, k.Timestamp)
}

// Call carries the context of a mutating operation: the gateway that submitted
// it, which must be authorized, and the time at which it is applied. The time
// comes from the block the operation belongs to, never from the local clock,
// so every replica applies the same rules.
type Call struct {
	Caller common.Address
	Time   time.Time
}

// NewCall ...
func NewCall(caller common.Address, t time.Time) Call {
	return Call{Caller: caller, Time: t}
}

// Ether returns n ether expressed in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}

// Finney returns n thousandths of an ether expressed in wei.
func Finney(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether/1000))
}

func copyAmount(a *big.Int) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}
