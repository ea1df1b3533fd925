// Package oracle implements the off-ledger agent that answers flight status
// requests.
//
// An Agent runs a set of oracle identities. It registers each one with the
// ledger, paying the registration fee, and reads back the indexes the ledger
// assigned to it. It then listens on the event bus for OracleRequested events
// and, for every oracle holding the requested index, submits a response whose
// status is chosen by a Policy. Responses are submitted concurrently from a
// worker pool. Failed submissions are logged and never retried; the ledger
// ignores duplicate and late responses anyway.
package oracle
