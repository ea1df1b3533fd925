// Package config defines the configuration for a Surety node.
//
// Regardless of how Surety is started, directly from Go code or as a standalone
// process from the command line, it uses the Config object defined in this
// package to store and forward configuration options. On top of these
// configuration options, Surety relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  priv_key // a plain text file containing the raw private key of the ledger owner (cf. surety keygen).
//  oracles/ // the private keys of the oracles run by the embedded agent, created on first run.
//  surety.toml // (optional) a configuration file mirroring the command line flags.
//  badger_db/ // the database, when Store is set.
package config
