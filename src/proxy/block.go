package proxy

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mosaicnetworks/surety/src/crypto"
	"github.com/ugorji/go/codec"
)

// Block is an ordered batch of encoded transactions. Timestamp, in unix
// nanoseconds, is the time at which every transaction of the block applies.
// StateHash is the application state hash after the block, set once it is
// committed.
type Block struct {
	Index        int
	Timestamp    int64
	Transactions [][]byte
	StateHash    []byte
}

// NewBlock ...
func NewBlock(index int, t time.Time, txs [][]byte) *Block {
	return &Block{
		Index:        index,
		Timestamp:    t.UnixNano(),
		Transactions: txs,
		StateHash:    []byte{},
	}
}

// Time ...
func (b *Block) Time() time.Time {
	return time.Unix(0, b.Timestamp)
}

// Key returns the storage key of a block index.
func (b *Block) Key() string {
	return BlockKey(b.Index)
}

// BlockKey ...
func BlockKey(index int) string {
	return fmt.Sprintf("block_%09d", index)
}

// Marshal ...
func (b *Block) Marshal() ([]byte, error) {
	bf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(bf, jh)

	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	return bf.Bytes(), nil
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bf, jh)

	return dec.Decode(b)
}

// Hash ...
func (b *Block) Hash() ([]byte, error) {
	data, err := b.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(data), nil
}
