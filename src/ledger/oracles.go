package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/sirupsen/logrus"
)

// oracleIndexes is the number of indexes assigned to every oracle.
const oracleIndexes = 3

type oracle struct {
	address common.Address
	indexes [oracleIndexes]uint8
	stake   *big.Int
}

func (o *oracle) holds(index uint8) bool {
	return containsIndex(o.indexes[:], index)
}

// RegisterOracle registers an oracle that paid stake, which must cover the
// registration fee, and assigns it three distinct indexes.
func (l *Ledger) RegisterOracle(call Call, addr common.Address, stake *big.Int) ([oracleIndexes]uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return [oracleIndexes]uint8{}, err
	}

	if stake == nil || stake.Cmp(l.params.RegistrationFee) < 0 {
		return [oracleIndexes]uint8{}, cm.NewLedgerErr(cm.InsufficientFee, addr.Hex())
	}

	if _, ok := l.oracles[addr]; ok {
		return [oracleIndexes]uint8{}, cm.NewLedgerErr(cm.AlreadyRegistered, addr.Hex())
	}

	o := &oracle{
		address: addr,
		indexes: l.drawIndexes(addr),
		stake:   copyAmount(stake),
	}
	l.oracles[addr] = o
	l.treasury.Add(l.treasury, stake)

	l.logger.WithFields(logrus.Fields{
		"oracle":  addr.Hex(),
		"indexes": o.indexes,
	}).Debug("RegisterOracle")

	return o.indexes, nil
}

// GetMyIndexes returns the indexes assigned to an oracle.
func (l *Ledger) GetMyIndexes(addr common.Address) ([oracleIndexes]uint8, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.oracles[addr]
	if !ok {
		return [oracleIndexes]uint8{}, cm.NewLedgerErr(cm.NotRegistered, addr.Hex())
	}
	return o.indexes, nil
}

// IsOracle ...
func (l *Ledger) IsOracle(addr common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.oracles[addr]
	return ok
}

// FetchFlightStatus asks the oracles for the status of a flight. It draws an
// index from the requester's identity, opens the bucket for (index, airline,
// code, timestamp) unless it already exists, and emits OracleRequested. The
// flight itself is left untouched. It returns the drawn index.
func (l *Ledger) FetchFlightStatus(call Call, requester, airline common.Address, code string, timestamp int64) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return 0, err
	}

	key := RequestKey{
		Index:     l.drawIndex(requester),
		Airline:   airline,
		Code:      code,
		Timestamp: timestamp,
	}

	if _, ok := l.requests[key]; !ok {
		l.requests[key] = newStatusRequest(key, requester)
		l.requestOrder = append(l.requestOrder, key)
	}

	l.emit(Event{
		Type:      OracleRequested,
		Index:     key.Index,
		Airline:   airline,
		Flight:    code,
		Timestamp: timestamp,
		Account:   requester,
	})

	l.logger.WithField("request", key.String()).Debug("FetchFlightStatus")

	return key.Index, nil
}
