package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/config"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/node"
	"github.com/mosaicnetworks/surety/src/proxy/inmem"
	"github.com/mosaicnetworks/surety/src/store"
	"github.com/mosaicnetworks/surety/src/surety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	logger := cm.NewTestEntry(t, cm.TestLogLevel)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	params := ledger.DefaultParams()

	l, err := ledger.NewLedger(owner, params, logger)
	require.NoError(t, err)

	conf := node.TestConfig(t)
	conf.BlockTimeout = 0
	conf.Clock = func() time.Time { return now }

	n := node.NewNode(conf,
		store.NewInmemStore(),
		inmem.NewInmemProxy(surety.NewState(l, logger), logger),
		nil)
	require.NoError(t, n.Init())
	n.RunAsync()
	defer n.Shutdown()

	catalog, err := config.NewDefaultConfig().FlightCatalog()
	require.NoError(t, err)

	require.NoError(t, seed(n, owner, params, catalog, now))

	assert.True(t, l.IsAirline(owner))

	flights := l.Flights()
	require.Len(t, flights, len(catalog))
	for i, f := range flights {
		assert.Equal(t, catalog[i].Code, f.Code)
		assert.Equal(t, now.Add(catalog[i].Offset).Unix(), f.Departure)
	}

	// the owner is already funded
	assert.Error(t, seed(n, owner, params, catalog, now))
}

func TestWriteOracleKeys(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, writeOracleKeys(dir, 3))

	conf := config.Config{DataDir: dir}
	for i := 0; i < 3; i++ {
		info, err := os.Stat(conf.OracleKeyfile(i))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	_, err := os.Stat(filepath.Join(dir, config.DefaultOracleDir, "oracle_03"))
	assert.True(t, os.IsNotExist(err))

	// existing keys are kept
	before, err := os.ReadFile(conf.OracleKeyfile(0))
	require.NoError(t, err)
	require.NoError(t, writeOracleKeys(dir, 1))
	after, err := os.ReadFile(conf.OracleKeyfile(0))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
