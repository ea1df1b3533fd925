package store

import (
	"strconv"
	"sync"

	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/proxy"
)

// InmemStore implements the Store interface with in-memory maps. It keeps
// everything until the process exits.
type InmemStore struct {
	sync.RWMutex

	blocks       map[int]*proxy.Block
	snapshots    map[int][]byte
	lastBlock    int
	lastSnapshot int
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		blocks:       make(map[int]*proxy.Block),
		snapshots:    make(map[int][]byte),
		lastBlock:    -1,
		lastSnapshot: -1,
	}
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(index int) (*proxy.Block, error) {
	s.RLock()
	defer s.RUnlock()

	res, ok := s.blocks[index]
	if !ok {
		return nil, cm.NewStoreErr("Blocks", cm.KeyNotFound, strconv.Itoa(index))
	}
	return res, nil
}

// SetBlock implements the Store interface.
func (s *InmemStore) SetBlock(block *proxy.Block) error {
	s.Lock()
	defer s.Unlock()

	if err := checkNext(block.Index, s.lastBlock); err != nil {
		return err
	}

	s.blocks[block.Index] = block
	s.lastBlock = block.Index

	return nil
}

// LastBlockIndex implements the Store interface.
func (s *InmemStore) LastBlockIndex() int {
	s.RLock()
	defer s.RUnlock()

	return s.lastBlock
}

// GetSnapshot implements the Store interface.
func (s *InmemStore) GetSnapshot(blockIndex int) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	res, ok := s.snapshots[blockIndex]
	if !ok {
		return nil, cm.NewStoreErr("Snapshots", cm.KeyNotFound, strconv.Itoa(blockIndex))
	}
	return res, nil
}

// SetSnapshot implements the Store interface.
func (s *InmemStore) SetSnapshot(blockIndex int, snapshot []byte) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.blocks[blockIndex]; !ok {
		return cm.NewStoreErr("Blocks", cm.KeyNotFound, strconv.Itoa(blockIndex))
	}

	s.snapshots[blockIndex] = snapshot
	if blockIndex > s.lastSnapshot {
		s.lastSnapshot = blockIndex
	}

	return nil
}

// LastSnapshotIndex implements the Store interface.
func (s *InmemStore) LastSnapshotIndex() int {
	s.RLock()
	defer s.RUnlock()

	return s.lastSnapshot
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

// checkNext verifies that index directly follows last.
func checkNext(index, last int) error {
	switch {
	case index <= last:
		return cm.NewStoreErr("Blocks", cm.KeyAlreadyExists, strconv.Itoa(index))
	case index > last+1:
		return cm.NewStoreErr("Blocks", cm.SkippedIndex, strconv.Itoa(index))
	}
	return nil
}
