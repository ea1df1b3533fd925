package proxy

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mosaicnetworks/surety/src/crypto"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/ugorji/go/codec"
)

// TxType enumerates the ledger operations that can be submitted.
type TxType uint8

const (
	// SetOperational ...
	SetOperational TxType = iota
	// AuthorizeCaller ...
	AuthorizeCaller
	// RevokeCaller ...
	RevokeCaller
	// RegisterAirline ...
	RegisterAirline
	// Fund ...
	Fund
	// RegisterFlight ...
	RegisterFlight
	// FetchFlightStatus ...
	FetchFlightStatus
	// RegisterOracle ...
	RegisterOracle
	// SubmitOracleResponse ...
	SubmitOracleResponse
	// Buy ...
	Buy
	// Pay ...
	Pay
)

var txTypeNames = []string{
	"SetOperational",
	"AuthorizeCaller",
	"RevokeCaller",
	"RegisterAirline",
	"Fund",
	"RegisterFlight",
	"FetchFlightStatus",
	"RegisterOracle",
	"SubmitOracleResponse",
	"Buy",
	"Pay",
}

// String returns the string representation of a TxType
func (t TxType) String() string {
	if int(t) < len(txTypeNames) {
		return txTypeNames[t]
	}
	return "Unknown"
}

// Tx is the envelope of a ledger operation. Caller is the gateway submitting
// it. Account is the primary party of the operation: the proposer, funded
// airline, requester, oracle or passenger. Addresses are hex strings and
// Amount is a decimal count of wei.
type Tx struct {
	Type        TxType
	Caller      string
	Account     string `json:",omitempty"`
	Airline     string `json:",omitempty"`
	Flight      string `json:",omitempty"`
	Timestamp   int64  `json:",omitempty"`
	Index       uint8  `json:",omitempty"`
	Status      uint8  `json:",omitempty"`
	Amount      string `json:",omitempty"`
	Operational bool   `json:",omitempty"`
}

// NewSetOperationalTx ...
func NewSetOperationalTx(caller common.Address, operational bool) Tx {
	return Tx{Type: SetOperational, Caller: caller.Hex(), Operational: operational}
}

// NewAuthorizeCallerTx ...
func NewAuthorizeCallerTx(caller, addr common.Address) Tx {
	return Tx{Type: AuthorizeCaller, Caller: caller.Hex(), Account: addr.Hex()}
}

// NewRevokeCallerTx ...
func NewRevokeCallerTx(caller, addr common.Address) Tx {
	return Tx{Type: RevokeCaller, Caller: caller.Hex(), Account: addr.Hex()}
}

// NewRegisterAirlineTx proposes candidate on behalf of proposer.
func NewRegisterAirlineTx(caller, candidate, proposer common.Address) Tx {
	return Tx{Type: RegisterAirline, Caller: caller.Hex(), Airline: candidate.Hex(), Account: proposer.Hex()}
}

// NewFundTx ...
func NewFundTx(caller, airline common.Address, amount *big.Int) Tx {
	return Tx{Type: Fund, Caller: caller.Hex(), Account: airline.Hex(), Amount: amount.String()}
}

// NewRegisterFlightTx ...
func NewRegisterFlightTx(caller, airline common.Address, code string, departure int64) Tx {
	return Tx{Type: RegisterFlight, Caller: caller.Hex(), Airline: airline.Hex(), Flight: code, Timestamp: departure}
}

// NewFetchFlightStatusTx ...
func NewFetchFlightStatusTx(caller, requester, airline common.Address, code string, timestamp int64) Tx {
	return Tx{
		Type:      FetchFlightStatus,
		Caller:    caller.Hex(),
		Account:   requester.Hex(),
		Airline:   airline.Hex(),
		Flight:    code,
		Timestamp: timestamp,
	}
}

// NewRegisterOracleTx ...
func NewRegisterOracleTx(caller, oracle common.Address, stake *big.Int) Tx {
	return Tx{Type: RegisterOracle, Caller: caller.Hex(), Account: oracle.Hex(), Amount: stake.String()}
}

// NewSubmitOracleResponseTx ...
func NewSubmitOracleResponseTx(caller, oracle common.Address, index uint8, key ledger.FlightKey, timestamp int64, status ledger.StatusCode) Tx {
	return Tx{
		Type:      SubmitOracleResponse,
		Caller:    caller.Hex(),
		Account:   oracle.Hex(),
		Index:     index,
		Airline:   key.Airline.Hex(),
		Flight:    key.Code,
		Timestamp: timestamp,
		Status:    uint8(status),
	}
}

// NewBuyTx ...
func NewBuyTx(caller common.Address, key ledger.FlightKey, passenger common.Address, premium *big.Int) Tx {
	return Tx{
		Type:    Buy,
		Caller:  caller.Hex(),
		Account: passenger.Hex(),
		Airline: key.Airline.Hex(),
		Flight:  key.Code,
		Amount:  premium.String(),
	}
}

// NewPayTx ...
func NewPayTx(caller, passenger common.Address) Tx {
	return Tx{Type: Pay, Caller: caller.Hex(), Account: passenger.Hex()}
}

// CallerAddress ...
func (tx *Tx) CallerAddress() (common.Address, error) {
	return ledger.ParseAddress(tx.Caller)
}

// AccountAddress ...
func (tx *Tx) AccountAddress() (common.Address, error) {
	return ledger.ParseAddress(tx.Account)
}

// AirlineAddress ...
func (tx *Tx) AirlineAddress() (common.Address, error) {
	return ledger.ParseAddress(tx.Airline)
}

// AmountWei ...
func (tx *Tx) AmountWei() (*big.Int, error) {
	return ledger.ParseAmount(tx.Amount)
}

// Marshal returns the canonical JSON encoding of the Tx.
func (tx *Tx) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(tx); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (tx *Tx) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(tx)
}

// Hash returns the SHA256 of the canonical encoding.
func (tx *Tx) Hash() ([]byte, error) {
	data, err := tx.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(data), nil
}
