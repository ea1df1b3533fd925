// Package store persists the blocks committed by a node and the periodic
// application snapshots taken after them, so that a node can restart by
// restoring the last snapshot and replaying the blocks that follow it.
package store
