// Package events carries ledger events from the node to subscribers such as
// oracle agents and dapp frontends.
//
// A Bus has three implementations: InmemBus, which fans events out inside the
// process, and the wamp and nats subpackages, which publish them on a WAMP
// router topic or a NATS subject so that agents can run in other processes.
// Events travel as canonical JSON.
package events
