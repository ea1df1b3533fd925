// Package keys implements the public key cryptography used to identify ledger
// participants.
//
// Airlines, passengers, oracles and the gateway that submits transactions are
// all identified by an address derived from a secp256k1 public key, the same
// way Ethereum derives account addresses. This means that Ethereum keys can be
// used to operate a Surety node or an oracle agent.
package keys
