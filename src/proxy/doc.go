// Package proxy defines the contact surface between the node, which orders
// transactions into blocks, and the application that executes them.
//
// Transactions are Tx envelopes, one type per mutating ledger operation,
// encoded with a canonical JSON handle so that every replica hashes them the
// same way. The node commits Blocks to a ProxyHandler and gets back a
// CommitResponse carrying the resulting state hash and one Receipt per
// transaction.
package proxy
