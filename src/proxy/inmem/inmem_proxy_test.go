package inmem

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/sirupsen/logrus"
)

type TestHandler struct {
	transactions [][]byte
	snapshots    map[int][]byte
	logger       *logrus.Entry
}

func (h *TestHandler) CommitHandler(block proxy.Block) (proxy.CommitResponse, error) {
	h.logger.Debug("CommitBlock")

	h.transactions = append(h.transactions, block.Transactions...)

	receipts := []proxy.Receipt{}
	for i := range block.Transactions {
		receipts = append(receipts, proxy.NewReceipt([]byte{byte(i)}, proxy.Pay))
	}

	h.snapshots[block.Index] = []byte(fmt.Sprintf("snapshot_%d", block.Index))

	return proxy.CommitResponse{
		StateHash: []byte("statehash"),
		Receipts:  receipts,
	}, nil
}

func (h *TestHandler) SnapshotHandler(blockIndex int) ([]byte, error) {
	h.logger.Debug("GetSnapshot")

	s, ok := h.snapshots[blockIndex]
	if !ok {
		return nil, fmt.Errorf("snapshot %d not found", blockIndex)
	}
	return s, nil
}

func (h *TestHandler) RestoreHandler(snapshot []byte) ([]byte, error) {
	h.logger.Debug("RestoreSnapshot")

	return []byte("statehash"), nil
}

func NewTestHandler(t *testing.T) *TestHandler {
	return &TestHandler{
		transactions: [][]byte{},
		snapshots:    make(map[int][]byte),
		logger:       common.NewTestEntry(t, common.TestLogLevel),
	}
}

func TestInmemProxyCommit(t *testing.T) {
	handler := NewTestHandler(t)
	p := NewInmemProxy(handler, handler.logger)

	txs := [][]byte{
		[]byte("tx 1"),
		[]byte("tx 2"),
		[]byte("tx 3"),
	}
	block := proxy.NewBlock(0, time.Now(), txs)

	resp, err := p.CommitBlock(*block)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(resp.StateHash, []byte("statehash")) {
		t.Fatalf("StateHash should be statehash, not %s", resp.StateHash)
	}

	if l := len(resp.Receipts); l != 3 {
		t.Fatalf("should have 3 receipts, not %d", l)
	}

	if l := len(handler.transactions); l != 3 {
		t.Fatalf("handler should have 3 transactions, not %d", l)
	}

	snapshot, err := p.GetSnapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(snapshot) != "snapshot_0" {
		t.Fatalf("wrong snapshot %s", snapshot)
	}

	if _, err := p.GetSnapshot(1); err == nil {
		t.Fatal("GetSnapshot(1) should fail")
	}

	stateHash, err := p.Restore(snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stateHash, []byte("statehash")) {
		t.Fatalf("wrong state hash %s", stateHash)
	}
}
