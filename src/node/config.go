package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/surety/src/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Config contains the settings of the node loop.
type Config struct {
	// BlockSize is the max number of transactions in a block.
	BlockSize int

	// BlockTimeout is how long the node waits for more transactions before
	// cutting a block that is not full. Zero cuts a block with whatever is
	// already queued.
	BlockTimeout time.Duration

	// SnapshotInterval is the number of blocks between two stored snapshots.
	// Zero disables snapshots.
	SnapshotInterval int

	// Bootstrap replays the store into the application on Init.
	Bootstrap bool

	// Clock stamps new blocks.
	Clock func() time.Time

	// Registry collects the node metrics.
	Registry *prometheus.Registry

	Logger *logrus.Entry
}

// NewConfig ...
func NewConfig(blockSize int,
	blockTimeout time.Duration,
	snapshotInterval int,
	bootstrap bool,
	logger *logrus.Entry) *Config {

	return &Config{
		BlockSize:        blockSize,
		BlockTimeout:     blockTimeout,
		SnapshotInterval: snapshotInterval,
		Bootstrap:        bootstrap,
		Clock:            time.Now,
		Registry:         prometheus.NewRegistry(),
		Logger:           logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return NewConfig(100, 10*time.Millisecond, 10, false, logrus.NewEntry(logger))
}

// TestConfig returns a default config logging through t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestEntry(t, common.TestLogLevel)
	return config
}
