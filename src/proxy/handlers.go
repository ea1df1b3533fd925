package proxy

// CommitResponse is returned by the application after committing a block. It
// holds the state hash after applying every transaction of the block and one
// receipt per transaction, in block order.
type CommitResponse struct {
	StateHash []byte
	Receipts  []Receipt
}

// ProxyHandler encapsulates the callbacks the node calls on the application.
type ProxyHandler interface {
	// CommitHandler is called when the node commits a block to the
	// application.
	CommitHandler(block Block) (response CommitResponse, err error)

	// SnapshotHandler is called by the node to retrieve a snapshot
	// corresponding to a particular block.
	SnapshotHandler(blockIndex int) (snapshot []byte, err error)

	// RestoreHandler is called by the node to restore the application to a
	// specific state.
	RestoreHandler(snapshot []byte) (stateHash []byte, err error)
}

// AppProxy is the interface the node holds on the application.
type AppProxy interface {
	CommitBlock(block Block) (CommitResponse, error)
	GetSnapshot(blockIndex int) ([]byte, error)
	Restore(snapshot []byte) ([]byte, error)
}
