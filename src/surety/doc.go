// Package surety is the application run by a node. Its State executes the
// transactions of committed blocks against the insurance ledger and produces
// one receipt per transaction, carrying the ledger events it caused.
package surety
