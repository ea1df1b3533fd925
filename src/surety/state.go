package surety

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/crypto"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// State implements the ProxyHandler interface on top of a Ledger. Transactions
// apply with the block time, so replaying the same blocks on a ledger built
// with the same owner and params always yields the same state. The state hash
// is computed by cumulatively hashing transactions together as they come in.
type State struct {
	sync.Mutex

	ledger    *ledger.Ledger
	stateHash []byte

	lastBlock    int
	lastSnapshot []byte

	logger *logrus.Entry
}

// NewState creates a State executing transactions on l.
func NewState(l *ledger.Ledger, logger *logrus.Entry) *State {
	state := &State{
		ledger:    l,
		stateHash: []byte{},
		lastBlock: -1,
		logger:    logger.WithField("component", "state"),
	}

	state.logger.Info("Init Surety State")

	return state
}

// Ledger returns the underlying ledger. It is safe to query concurrently with
// commits.
func (s *State) Ledger() *ledger.Ledger {
	return s.ledger
}

// StateHash ...
func (s *State) StateHash() []byte {
	s.Lock()
	defer s.Unlock()

	return s.stateHash
}

// CommitHandler implements the ProxyHandler interface. Every transaction of
// the block is applied in order. Rejected transactions leave the ledger
// untouched but still get a receipt and still count in the state hash.
func (s *State) CommitHandler(block proxy.Block) (proxy.CommitResponse, error) {
	s.Lock()
	defer s.Unlock()

	s.logger.WithFields(logrus.Fields{
		"block": block.Index,
		"txs":   len(block.Transactions),
	}).Debug("CommitBlock")

	t := block.Time()

	hash := s.stateHash
	receipts := make([]proxy.Receipt, 0, len(block.Transactions))
	for _, raw := range block.Transactions {
		receipts = append(receipts, s.apply(raw, t))
		hash = crypto.SimpleHashFromTwoHashes(hash, crypto.SHA256(raw))
	}
	s.stateHash = hash

	s.lastBlock = block.Index
	s.lastSnapshot = nil

	return proxy.CommitResponse{
		StateHash: s.stateHash,
		Receipts:  receipts,
	}, nil
}

func (s *State) apply(raw []byte, t time.Time) proxy.Receipt {
	var tx proxy.Tx

	receipt := proxy.NewReceipt(crypto.SHA256(raw), 0)

	if err := tx.Unmarshal(raw); err != nil {
		receipt.SetError(err)
		return receipt
	}
	receipt.Type = tx.Type

	result, err := s.execute(&tx, t)

	// failed operations emit nothing
	receipt.Events = s.ledger.DrainEvents()

	logger := s.logger.WithField("type", tx.Type.String())

	if err != nil {
		receipt.SetError(err)
		logger.WithError(err).Debug("Tx rejected")
		return receipt
	}

	receipt.Result = result
	logger.WithField("result", result).Debug("Tx applied")

	return receipt
}

func (s *State) execute(tx *proxy.Tx, t time.Time) (string, error) {
	caller, err := tx.CallerAddress()
	if err != nil {
		return "", err
	}
	call := ledger.NewCall(caller, t)

	switch tx.Type {
	case proxy.SetOperational:
		return "", s.ledger.SetOperational(call, tx.Operational)

	case proxy.AuthorizeCaller, proxy.RevokeCaller, proxy.Pay:
		account, err := tx.AccountAddress()
		if err != nil {
			return "", err
		}
		switch tx.Type {
		case proxy.AuthorizeCaller:
			return "", s.ledger.AuthorizeCaller(call, account)
		case proxy.RevokeCaller:
			return "", s.ledger.RevokeCaller(call, account)
		default:
			amount, err := s.ledger.Pay(call, account)
			if err != nil {
				return "", err
			}
			return amount.String(), nil
		}

	case proxy.RegisterAirline:
		candidate, err := tx.AirlineAddress()
		if err != nil {
			return "", err
		}
		proposer, err := tx.AccountAddress()
		if err != nil {
			return "", err
		}
		adm, err := s.ledger.RegisterAirline(call, candidate, proposer)
		if err != nil {
			return "", err
		}
		return FormatAdmission(adm), nil

	case proxy.Fund, proxy.RegisterOracle:
		account, err := tx.AccountAddress()
		if err != nil {
			return "", err
		}
		amount, err := tx.AmountWei()
		if err != nil {
			return "", err
		}
		if tx.Type == proxy.Fund {
			return "", s.ledger.Fund(call, account, amount)
		}
		indexes, err := s.ledger.RegisterOracle(call, account, amount)
		if err != nil {
			return "", err
		}
		return FormatIndexes(indexes[:]), nil

	case proxy.RegisterFlight:
		airline, err := tx.AirlineAddress()
		if err != nil {
			return "", err
		}
		return "", s.ledger.RegisterFlight(call, airline, tx.Flight, tx.Timestamp)

	case proxy.FetchFlightStatus:
		requester, err := tx.AccountAddress()
		if err != nil {
			return "", err
		}
		airline, err := tx.AirlineAddress()
		if err != nil {
			return "", err
		}
		index, err := s.ledger.FetchFlightStatus(call, requester, airline, tx.Flight, tx.Timestamp)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(index)), nil

	case proxy.SubmitOracleResponse:
		oracle, err := tx.AccountAddress()
		if err != nil {
			return "", err
		}
		airline, err := tx.AirlineAddress()
		if err != nil {
			return "", err
		}
		sub, err := s.ledger.SubmitOracleResponse(call, oracle, tx.Index, airline, tx.Flight, tx.Timestamp, ledger.StatusCode(tx.Status))
		if err != nil {
			return "", err
		}
		if sub.Finalized {
			return sub.Status.String(), nil
		}
		return "", nil

	case proxy.Buy:
		passenger, err := tx.AccountAddress()
		if err != nil {
			return "", err
		}
		airline, err := tx.AirlineAddress()
		if err != nil {
			return "", err
		}
		premium, err := tx.AmountWei()
		if err != nil {
			return "", err
		}
		return "", s.ledger.Buy(call, airline, tx.Flight, passenger, premium)
	}

	return "", fmt.Errorf("unknown transaction type %d", tx.Type)
}

type appSnapshot struct {
	StateHash []byte
	Ledger    []byte
}

// SnapshotHandler implements the ProxyHandler interface. Only the snapshot of
// the last committed block is available.
func (s *State) SnapshotHandler(blockIndex int) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	s.logger.WithField("block", blockIndex).Debug("GetSnapshot")

	if blockIndex != s.lastBlock {
		return nil, fmt.Errorf("Snapshot %d not found", blockIndex)
	}

	if s.lastSnapshot != nil {
		return s.lastSnapshot, nil
	}

	ls, err := s.ledger.Snapshot()
	if err != nil {
		return nil, err
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(appSnapshot{StateHash: s.stateHash, Ledger: ls}); err != nil {
		return nil, err
	}

	s.lastSnapshot = b.Bytes()

	return s.lastSnapshot, nil
}

// RestoreHandler implements the ProxyHandler interface. It restores the
// ledger and the state hash from a snapshot.
func (s *State) RestoreHandler(snapshot []byte) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	var as appSnapshot

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bytes.NewBuffer(snapshot), jh)

	if err := dec.Decode(&as); err != nil {
		return nil, err
	}

	if err := s.ledger.Restore(as.Ledger); err != nil {
		return nil, err
	}

	s.stateHash = as.StateHash
	s.lastSnapshot = nil

	s.logger.WithField("state_hash", cm.EncodeToString(s.stateHash)).Info("Restored")

	return s.stateHash, nil
}

// FormatIndexes renders oracle indexes as a comma separated list.
func FormatIndexes(indexes []uint8) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.Itoa(int(idx))
	}
	return strings.Join(parts, ",")
}

// ParseIndexes is the inverse of FormatIndexes.
func ParseIndexes(s string) ([]uint8, error) {
	if s == "" {
		return nil, nil
	}
	res := []uint8{}
	for _, p := range strings.Split(s, ",") {
		idx, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, err
		}
		res = append(res, uint8(idx))
	}
	return res, nil
}

// FormatAdmission renders the outcome of RegisterAirline as
// "registered" or "votes=N".
func FormatAdmission(adm ledger.Admission) string {
	if adm.Registered {
		return "registered"
	}
	return fmt.Sprintf("votes=%d", adm.Votes)
}
