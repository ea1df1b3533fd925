package node

import (
	"github.com/mosaicnetworks/surety/src/proxy"
)

// TxResponse is the outcome of a submitted transaction.
type TxResponse struct {
	Receipt *proxy.Receipt
	Err     error
}

// TxPromise tracks an encoded transaction until it is committed.
type TxPromise struct {
	Tx     []byte
	RespCh chan TxResponse
}

// NewTxPromise ...
func NewTxPromise(tx []byte) *TxPromise {
	return &TxPromise{
		Tx: tx,
		// buffered so that the node loop never blocks on a submitter that gave
		// up waiting
		RespCh: make(chan TxResponse, 1),
	}
}

// Respond ...
func (p *TxPromise) Respond(receipt *proxy.Receipt, err error) {
	p.RespCh <- TxResponse{Receipt: receipt, Err: err}
}
