package config

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/rifflock/lfshook"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the private
	// key of the ledger owner.
	DefaultKeyfile = "priv_key"

	// DefaultOracleDir is the default name of the folder containing the
	// private keys of the oracles run by the node.
	DefaultOracleDir = "oracles"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigName is the name of the optional configuration file, without
	// extension, looked up in the data directory.
	DefaultConfigName = "surety"
)

// Event bus backends.
const (
	BusInmem = "inmem"
	BusWAMP  = "wamp"
	BusNATS  = "nats"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultCacheSize        = 500
	DefaultStore            = false
	DefaultBlockSize        = 100
	DefaultBlockTimeout     = 100 * time.Millisecond
	DefaultSnapshotInterval = 10
	DefaultBus              = BusInmem
	DefaultWAMPAddr         = "127.0.0.1:8443"
	DefaultWAMPRealm        = "surety"
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultOracles          = 20
	DefaultOracleWorkers    = 8
	DefaultMinStake         = "10"
	DefaultRegistrationFee  = "1"
	DefaultPremiumCap       = "1"
	DefaultIndexSpace       = 10
)

// DefaultFlights is the flight catalog seeded in a fresh ledger. Each entry is
// a flight code and a departure offset from the time the node starts.
var DefaultFlights = []string{
	"ND1309:2h",
	"ND1409:6h",
	"ND1509:24h",
	"ND1609:48h",
}

// Config contains all the configuration properties of a Surety node.
type Config struct {
	// DataDir is the top-level directory containing Surety configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Bootstrap determines whether or not to load the ledger from an existing
	// database. Forces Store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// BlockSize is the max number of transactions committed in one block.
	BlockSize int `mapstructure:"block-size"`

	// BlockTimeout is how long the node waits for more transactions before
	// cutting a block that is not full.
	BlockTimeout time.Duration `mapstructure:"block-timeout"`

	// SnapshotInterval is the number of blocks between two persisted
	// snapshots.
	SnapshotInterval int `mapstructure:"snapshot-interval"`

	// Bus selects the event bus: inmem, wamp or nats.
	Bus string `mapstructure:"bus"`

	// WAMPAddr is the address:port of the embedded WAMP router.
	WAMPAddr string `mapstructure:"wamp-listen"`

	// WAMPRealm is the realm ledger events are published in.
	WAMPRealm string `mapstructure:"wamp-realm"`

	// NATSURL is the URL of the NATS server.
	NATSURL string `mapstructure:"nats-url"`

	// Oracles is the number of oracle identities run by the embedded oracle
	// agent. Zero disables the agent.
	Oracles int `mapstructure:"oracles"`

	// OracleWorkers is the size of the pool submitting oracle responses.
	OracleWorkers int `mapstructure:"oracle-workers"`

	// MinStake, RegistrationFee and PremiumCap are decimal ether amounts.
	MinStake        string `mapstructure:"min-stake"`
	RegistrationFee string `mapstructure:"registration-fee"`
	PremiumCap      string `mapstructure:"premium-cap"`

	// IndexSpace is the size of the oracle index space.
	IndexSpace int `mapstructure:"index-space"`

	// Flights is the catalog of flights registered by the owner airline in a
	// fresh ledger, as CODE:OFFSET entries.
	Flights []string `mapstructure:"flights"`

	// Key is the private key of the ledger owner.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		ServiceAddr:      DefaultServiceAddr,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		CacheSize:        DefaultCacheSize,
		BlockSize:        DefaultBlockSize,
		BlockTimeout:     DefaultBlockTimeout,
		SnapshotInterval: DefaultSnapshotInterval,
		Bus:              DefaultBus,
		WAMPAddr:         DefaultWAMPAddr,
		WAMPRealm:        DefaultWAMPRealm,
		NATSURL:          DefaultNATSURL,
		Oracles:          DefaultOracles,
		OracleWorkers:    DefaultOracleWorkers,
		MinStake:         DefaultMinStake,
		RegistrationFee:  DefaultRegistrationFee,
		PremiumCap:       DefaultPremiumCap,
		IndexSpace:       DefaultIndexSpace,
		Flights:          append([]string{}, DefaultFlights...),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level Surety directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the owner's private
// key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// OracleKeyfile returns the full path of the file containing the private key
// of the i-th oracle.
func (c *Config) OracleKeyfile(i int) string {
	return filepath.Join(c.DataDir, DefaultOracleDir, fmt.Sprintf("oracle_%02d", i))
}

// LedgerParams converts the ledger settings into ledger.Params. Ether amounts
// must resolve to a whole number of wei.
func (c *Config) LedgerParams() (ledger.Params, error) {
	params := ledger.DefaultParams()

	var err error

	if params.MinStake, err = EtherToWei(c.MinStake); err != nil {
		return params, fmt.Errorf("min-stake: %v", err)
	}
	if params.RegistrationFee, err = EtherToWei(c.RegistrationFee); err != nil {
		return params, fmt.Errorf("registration-fee: %v", err)
	}
	if params.PremiumCap, err = EtherToWei(c.PremiumCap); err != nil {
		return params, fmt.Errorf("premium-cap: %v", err)
	}

	if c.IndexSpace <= 0 || c.IndexSpace > 255 {
		return params, fmt.Errorf("index-space out of range: %d", c.IndexSpace)
	}
	params.IndexSpace = uint8(c.IndexSpace)

	return params, params.Validate()
}

// CatalogFlight is an entry of the flight catalog.
type CatalogFlight struct {
	Code   string
	Offset time.Duration
}

// FlightCatalog parses the Flights setting.
func (c *Config) FlightCatalog() ([]CatalogFlight, error) {
	res := make([]CatalogFlight, 0, len(c.Flights))
	for _, f := range c.Flights {
		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid flight %q, expected CODE:OFFSET", f)
		}
		offset, err := time.ParseDuration(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid flight %q: %v", f, err)
		}
		if offset <= 0 {
			return nil, fmt.Errorf("invalid flight %q: departure must be in the future", f)
		}
		res = append(res, CatalogFlight{Code: parts[0], Offset: offset})
	}
	return res, nil
}

// Logger returns a formatted logrus Entry, with prefix set to "surety". When
// LogFile is set, every entry is also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "surety")
}

// EtherToWei parses a decimal amount of ether into wei.
func EtherToWei(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	wei := d.Shift(18)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%s ether is not a whole number of wei", s)
	}
	return wei.BigInt(), nil
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Surety config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Surety")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Surety")
		} else {
			return filepath.Join(home, ".surety")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
