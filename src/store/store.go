package store

import (
	"github.com/mosaicnetworks/surety/src/proxy"
)

// Store is an interface for backend stores.
type Store interface {
	// GetBlock returns a block by index.
	GetBlock(index int) (*proxy.Block, error)
	// SetBlock stores a block. Blocks are stored in index order.
	SetBlock(block *proxy.Block) error
	// LastBlockIndex returns the index of the last stored block, or -1.
	LastBlockIndex() int
	// GetSnapshot returns the application snapshot taken after a block.
	GetSnapshot(blockIndex int) ([]byte, error)
	// SetSnapshot stores the application snapshot taken after a block.
	SetSnapshot(blockIndex int, snapshot []byte) error
	// LastSnapshotIndex returns the block index of the last snapshot, or -1.
	LastSnapshotIndex() int
	// Close closes the underlying database, if any.
	Close() error
	// StorePath returns the path of the database, if any.
	StorePath() string
}
