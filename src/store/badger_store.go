package store

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger"
	lru "github.com/hashicorp/golang-lru"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	blockPrefix    = "block"
	snapshotPrefix = "snapshot"
	lastBlockKey   = "meta_last_block"
	lastSnapKey    = "meta_last_snapshot"
)

// BadgerStore persists blocks and snapshots in a Badger database. Recently
// read or written blocks are kept in an LRU cache.
type BadgerStore struct {
	db           *badger.DB
	path         string
	blockCache   *lru.Cache
	lastBlock    int
	lastSnapshot int
	logger       *logrus.Entry
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	} else {
		logger = logrus.NewEntry(logrus.New())
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger db at %s", path)
	}

	store := &BadgerStore{
		db:         handle,
		path:       path,
		blockCache: cache,
		logger:     logger.WithField("component", "store"),
	}

	if store.lastBlock, err = store.dbGetMeta(lastBlockKey); err != nil {
		handle.Close()
		return nil, err
	}

	if store.lastSnapshot, err = store.dbGetMeta(lastSnapKey); err != nil {
		handle.Close()
		return nil, err
	}

	store.logger.WithFields(logrus.Fields{
		"path":          path,
		"last_block":    store.lastBlock,
		"last_snapshot": store.lastSnapshot,
	}).Debug("Open BadgerStore")

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", blockPrefix, index))
}

func snapshotKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", snapshotPrefix, index))
}

/*******************************************************************************
Store Implementation
*******************************************************************************/

// GetBlock implements the Store interface.
func (s *BadgerStore) GetBlock(index int) (*proxy.Block, error) {
	if b, ok := s.blockCache.Get(index); ok {
		return b.(*proxy.Block), nil
	}

	block, err := s.dbGetBlock(index)
	if err != nil {
		return nil, mapError(err, "Block", string(blockKey(index)))
	}

	s.blockCache.Add(index, block)

	return block, nil
}

// SetBlock implements the Store interface.
func (s *BadgerStore) SetBlock(block *proxy.Block) error {
	if err := checkNext(block.Index, s.lastBlock); err != nil {
		return err
	}

	if err := s.dbSetBlock(block); err != nil {
		return errors.Wrapf(err, "storing block %d", block.Index)
	}

	s.blockCache.Add(block.Index, block)
	s.lastBlock = block.Index

	return nil
}

// LastBlockIndex implements the Store interface.
func (s *BadgerStore) LastBlockIndex() int {
	return s.lastBlock
}

// GetSnapshot implements the Store interface.
func (s *BadgerStore) GetSnapshot(blockIndex int) ([]byte, error) {
	key := snapshotKey(blockIndex)
	snapshot, err := s.dbGet(key)
	if err != nil {
		return nil, mapError(err, "Snapshot", string(key))
	}
	return snapshot, nil
}

// SetSnapshot implements the Store interface.
func (s *BadgerStore) SetSnapshot(blockIndex int, snapshot []byte) error {
	if blockIndex > s.lastBlock {
		return cm.NewStoreErr("Block", cm.KeyNotFound, string(blockKey(blockIndex)))
	}

	last := s.lastSnapshot
	if blockIndex > last {
		last = blockIndex
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(blockIndex), snapshot); err != nil {
			return err
		}
		return txn.Set([]byte(lastSnapKey), []byte(strconv.Itoa(last)))
	})
	if err != nil {
		return errors.Wrapf(err, "storing snapshot %d", blockIndex)
	}

	s.lastSnapshot = last

	return nil
}

// LastSnapshotIndex implements the Store interface.
func (s *BadgerStore) LastSnapshotIndex() int {
	return s.lastSnapshot
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	s.blockCache.Purge()
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) dbGet(key []byte) ([]byte, error) {
	var res []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		res, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BadgerStore) dbGetMeta(key string) (int, error) {
	val, err := s.dbGet([]byte(key))
	if isDBKeyNotFound(err) {
		return -1, nil
	}
	if err != nil {
		return -1, errors.Wrapf(err, "reading %s", key)
	}
	res, err := strconv.Atoi(string(val))
	if err != nil {
		return -1, errors.Wrapf(err, "parsing %s", key)
	}
	return res, nil
}

func (s *BadgerStore) dbGetBlock(index int) (*proxy.Block, error) {
	blockBytes, err := s.dbGet(blockKey(index))
	if err != nil {
		return nil, err
	}

	block := new(proxy.Block)
	if err := block.Unmarshal(blockBytes); err != nil {
		return nil, err
	}

	return block, nil
}

func (s *BadgerStore) dbSetBlock(block *proxy.Block) error {
	val, err := block.Marshal()
	if err != nil {
		return err
	}

	// [index] => [block bytes], and the new last index, in one transaction
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(block.Index), val); err != nil {
			return err
		}
		return txn.Set([]byte(lastBlockKey), []byte(strconv.Itoa(block.Index)))
	})
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
		return errors.Wrapf(err, "reading %s %s", name, key)
	}
	return nil
}
