// Package node implements the serialized executor of a Surety node.
//
// Transactions reach the node through SubmitTx, which queues a promise and
// waits for the receipt. A single goroutine drains the queue into blocks,
// stamps every block with the node clock, and commits it to the application
// through an AppProxy. The block time is the time the ledger applies to every
// transaction of the block, so replaying the stored blocks always rebuilds the
// same state.
//
// Persistence
//
// Every committed block is written to the Store together with the state hash
// it produced. Every SnapshotInterval blocks, the node also asks the
// application for a snapshot and stores it. Bootstrap restores the last
// snapshot and replays the blocks that follow it, checking that each one
// reproduces its recorded state hash.
//
// Events
//
// The events collected in the receipts of a block are published on the event
// Bus once the block is committed. Oracle agents listen for OracleRequested
// events there.
//
// The node is a state machine whose states are defined in the state package.
package node
