// Package ledger implements the flight-insurance state machine.
//
// Airlines join the federation by progressive consensus: the first four are
// admitted by any funded airline, later candidates need the votes of half of
// the funded airlines. Funded airlines register flights, passengers insure
// them, and registered oracles vote on flight status for requests identified
// by an index drawn from a small space. Three matching votes finalize a
// request; a LateAirline outcome credits every insuree of the flight with 1.5
// times the premium, which they later withdraw.
//
// Every exported mutating method is atomic. It either applies completely or
// returns a common.LedgerErr and leaves the state untouched. Queries never
// depend on the operational flag.
package ledger
