package proxy

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxMarshal(t *testing.T) {
	caller := common.BigToAddress(big.NewInt(1))
	oracle := common.BigToAddress(big.NewInt(2))
	key := ledger.NewFlightKey(common.BigToAddress(big.NewInt(3)), "FL1")

	tx := NewSubmitOracleResponseTx(caller, oracle, 7, key, 1600003600, ledger.LateAirline)

	data, err := tx.Marshal()
	require.NoError(t, err)

	var tx2 Tx
	require.NoError(t, tx2.Unmarshal(data))
	require.Equal(t, tx, tx2)

	addr, err := tx2.AccountAddress()
	require.NoError(t, err)
	require.Equal(t, oracle, addr)

	airline, err := tx2.AirlineAddress()
	require.NoError(t, err)
	require.Equal(t, key.Airline, airline)

	h1, err := tx.Hash()
	require.NoError(t, err)
	h2, err := tx2.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	other := NewSubmitOracleResponseTx(caller, oracle, 7, key, 1600003600, ledger.OnTime)
	h3, err := other.Hash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestTxAmount(t *testing.T) {
	caller := common.BigToAddress(big.NewInt(1))

	tx := NewFundTx(caller, caller, ledger.Ether(10))
	amount, err := tx.AmountWei()
	require.NoError(t, err)
	require.Equal(t, 0, amount.Cmp(ledger.Ether(10)))

	tx.Amount = "ten"
	_, err = tx.AmountWei()
	require.Error(t, err)

	tx.Caller = "0x12"
	_, err = tx.CallerAddress()
	require.Error(t, err)
}

func TestTxTypeString(t *testing.T) {
	assert.Equal(t, "SubmitOracleResponse", SubmitOracleResponse.String())
	assert.Equal(t, "Pay", Pay.String())
	assert.Equal(t, "Unknown", TxType(200).String())
}

func TestBlockMarshal(t *testing.T) {
	ts := time.Unix(1600000000, 42)
	block := NewBlock(3, ts, [][]byte{[]byte("a"), []byte("b")})

	data, err := block.Marshal()
	require.NoError(t, err)

	var b2 Block
	require.NoError(t, b2.Unmarshal(data))

	require.Equal(t, 3, b2.Index)
	require.True(t, ts.Equal(b2.Time()))
	require.Len(t, b2.Transactions, 2)
	require.True(t, bytes.Equal([]byte("b"), b2.Transactions[1]))
	require.Equal(t, "block_000000003", b2.Key())
}

func TestReceiptError(t *testing.T) {
	r := NewReceipt([]byte("hash"), Buy)
	require.True(t, r.Succeeded())
	require.NoError(t, r.Error())

	r.SetError(cm.NewLedgerErr(cm.AlreadyInsured, "0xabc"))
	require.False(t, r.Succeeded())

	err := r.Error()
	require.True(t, cm.IsLedger(err, cm.AlreadyInsured))
	require.Equal(t, "AlreadyInsured: 0xabc", err.Error())
}
