package ledger

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mosaicnetworks/surety/src/crypto"
)

// IndexSource draws oracle indexes. Implementations must be deterministic in
// their arguments so that every replica of the ledger draws the same indexes.
type IndexSource interface {
	// Index returns a value in [0, space) for the given account and draw
	// counter.
	Index(account common.Address, nonce uint64, space uint8) uint8
}

// KeccakSource is the default IndexSource. It hashes the big-endian nonce
// followed by the account address and reduces the hash modulo space.
type KeccakSource struct{}

// Index implements IndexSource.
func (KeccakSource) Index(account common.Address, nonce uint64, space uint8) uint8 {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	h := new(big.Int).SetBytes(crypto.Keccak256(n[:], account.Bytes()))

	return uint8(h.Mod(h, big.NewInt(int64(space))).Uint64())
}

// SequenceSource replays a fixed list of indexes, cycling when it reaches the
// end. It ignores its arguments except to reduce values into space.
type SequenceSource struct {
	Values []uint8
	pos    int
}

// NewSequenceSource ...
func NewSequenceSource(values ...uint8) *SequenceSource {
	return &SequenceSource{Values: values}
}

// Index implements IndexSource.
func (s *SequenceSource) Index(account common.Address, nonce uint64, space uint8) uint8 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.pos%len(s.Values)]
	s.pos++
	return v % space
}

// drawIndex draws one index and advances the ledger nonce.
func (l *Ledger) drawIndex(account common.Address) uint8 {
	idx := l.source.Index(account, l.nonce, l.params.IndexSpace)
	l.nonce++
	return idx
}

// maxDraws bounds the number of draws spent on one oracle. A source that keeps
// colliding past it gets the lowest unused indexes instead.
const maxDraws = 256

// drawIndexes draws oracleIndexes pairwise distinct indexes, drawing again on
// collisions within the same call.
func (l *Ledger) drawIndexes(account common.Address) [oracleIndexes]uint8 {
	var res [oracleIndexes]uint8
	n := 0
	for draws := 0; n < oracleIndexes && draws < maxDraws; draws++ {
		idx := l.drawIndex(account)
		if containsIndex(res[:n], idx) {
			continue
		}
		res[n] = idx
		n++
	}
	for idx := uint8(0); n < oracleIndexes; idx++ {
		if !containsIndex(res[:n], idx) {
			res[n] = idx
			n++
		}
	}
	return res
}

func containsIndex(indexes []uint8, idx uint8) bool {
	for _, i := range indexes {
		if i == idx {
			return true
		}
	}
	return false
}
