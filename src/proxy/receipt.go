package proxy

import (
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/pkg/errors"
)

// Receipt reports the outcome of one transaction. A transaction rejected by the
// ledger still produces a receipt, with Err set; a receipt without Err may
// carry a Result, such as the indexes of a new oracle or the amount paid.
type Receipt struct {
	TxHash  []byte
	Type    TxType
	Err     string         `json:",omitempty"`
	ErrType string         `json:",omitempty"`
	Subject string         `json:",omitempty"`
	Events  []ledger.Event `json:",omitempty"`
	Result  string         `json:",omitempty"`
}

// NewReceipt ...
func NewReceipt(txHash []byte, txType TxType) Receipt {
	return Receipt{
		TxHash: txHash,
		Type:   txType,
	}
}

// SetError records err on the receipt, keeping the type of ledger errors.
func (r *Receipt) SetError(err error) {
	r.Err = err.Error()
	if le, ok := errors.Cause(err).(cm.LedgerErr); ok {
		r.ErrType = le.Type().String()
		r.Subject = le.Subject()
	}
}

// Error returns the error the transaction failed with, or nil. Ledger errors
// are rebuilt so that common.IsLedger works on the client side.
func (r *Receipt) Error() error {
	if r.Err == "" {
		return nil
	}
	if t, ok := cm.LedgerErrTypeFromString(r.ErrType); ok {
		return cm.NewLedgerErr(t, r.Subject)
	}
	return errors.New(r.Err)
}

// Succeeded ...
func (r *Receipt) Succeeded() bool {
	return r.Err == ""
}
