package oracle

import (
	"github.com/mosaicnetworks/surety/src/ledger"
)

// Policy decides the status an oracle reports for a request. position is the
// rank of the oracle in the agent.
type Policy interface {
	Status(position int, request ledger.RequestKey) ledger.StatusCode
}

// TablePolicy assigns statuses by oracle position, cycling through the table.
type TablePolicy []ledger.StatusCode

// DefaultTable spreads the oracles of an agent over every status, with a bias
// towards LateAirline.
var DefaultTable = TablePolicy{
	ledger.Unknown,
	ledger.OnTime,
	ledger.OnTime,
	ledger.LateAirline,
	ledger.LateAirline,
	ledger.LateAirline,
	ledger.LateAirline,
	ledger.LateWeather,
	ledger.LateTechnical,
	ledger.LateOther,
}

// Status implements the Policy interface.
func (p TablePolicy) Status(position int, request ledger.RequestKey) ledger.StatusCode {
	if len(p) == 0 {
		return ledger.Unknown
	}
	return p[position%len(p)]
}

// StaticPolicy makes every oracle report the same status.
type StaticPolicy ledger.StatusCode

// Status implements the Policy interface.
func (p StaticPolicy) Status(position int, request ledger.RequestKey) ledger.StatusCode {
	return ledger.StatusCode(p)
}
