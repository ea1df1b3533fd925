package commands

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mosaicnetworks/surety/src/config"
	"github.com/mosaicnetworks/surety/src/crypto/keys"
	"github.com/mosaicnetworks/surety/src/events"
	natsbus "github.com/mosaicnetworks/surety/src/events/nats"
	"github.com/mosaicnetworks/surety/src/events/wamp"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/node"
	"github.com/mosaicnetworks/surety/src/oracle"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/mosaicnetworks/surety/src/proxy/inmem"
	"github.com/mosaicnetworks/surety/src/service"
	"github.com/mosaicnetworks/surety/src/store"
	"github.com/mosaicnetworks/surety/src/surety"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// seedTimeout bounds the time spent seeding a fresh ledger.
const seedTimeout = 30 * time.Second

//NewRunCmd returns the command that starts a Surety node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runSurety,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSurety(cmd *cobra.Command, args []string) error {
	conf := &_config.Surety
	logger := conf.Logger()

	key, created, err := keys.NewSimpleKeyfile(conf.Keyfile()).ReadOrCreateKey()
	if err != nil {
		logger.WithError(err).Error("Cannot load owner key")
		return err
	}
	if created {
		logger.WithField("keyfile", conf.Keyfile()).Info("Created owner key")
	}
	conf.Key = key

	owner := keys.Address(&key.PublicKey)

	params, err := conf.LedgerParams()
	if err != nil {
		return err
	}

	catalog, err := conf.FlightCatalog()
	if err != nil {
		return err
	}

	l, err := ledger.NewLedger(owner, params, logger)
	if err != nil {
		return err
	}

	st, err := newStore(conf, logger)
	if err != nil {
		logger.WithError(err).Error("Cannot open store")
		return err
	}

	bus, wampServer, err := newBus(conf, logger)
	if err != nil {
		logger.WithError(err).Error("Cannot create event bus")
		st.Close()
		return err
	}

	nodeConf := node.NewConfig(
		conf.BlockSize,
		conf.BlockTimeout,
		conf.SnapshotInterval,
		conf.Bootstrap,
		logger,
	)

	n := node.NewNode(nodeConf,
		st,
		inmem.NewInmemProxy(surety.NewState(l, logger), logger),
		bus)

	abort := func(err error) error {
		n.Shutdown()
		if wampServer != nil {
			wampServer.Shutdown()
		}
		return err
	}

	if err := n.Init(); err != nil {
		logger.WithError(err).Error("Cannot initialize node")
		return abort(err)
	}

	n.RunAsync()

	if n.LastBlockIndex() == -1 {
		if err := seed(n, owner, params, catalog, time.Now()); err != nil {
			logger.WithError(err).Error("Cannot seed ledger")
			return abort(err)
		}
		logger.WithFields(logrus.Fields{
			"owner":   owner.Hex(),
			"flights": len(catalog),
		}).Info("Seeded ledger")
	}

	var svc *service.Service
	if !conf.NoService {
		svc = service.NewService(conf.ServiceAddr, owner, n, l, logger)
		go svc.Serve()
	}

	var agent *oracle.Agent
	if conf.Oracles > 0 {
		oracleKeys, err := loadOracleKeys(conf)
		if err != nil {
			logger.WithError(err).Error("Cannot load oracle keys")
			return abort(err)
		}

		agent = oracle.NewAgent(owner, oracleKeys, n, l, bus, nil, conf.OracleWorkers, logger)

		ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
		err = agent.Register(ctx, params.RegistrationFee)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Some oracles are not registered")
		}

		agent.Start()
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh

	logger.Info("Received an interrupt, stopping services...")

	if agent != nil {
		agent.Stop()
	}

	if svc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := svc.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Shutting down service")
		}
		cancel()
	}

	err = n.Shutdown()

	if wampServer != nil {
		wampServer.Shutdown()
	}

	return err
}

func newStore(conf *config.Config, logger *logrus.Entry) (store.Store, error) {
	if !conf.Store {
		return store.NewInmemStore(), nil
	}
	return store.NewBadgerStore(conf.CacheSize, conf.DatabaseDir, logger)
}

// newBus creates the event bus selected by conf. Unless an external router is
// given, WAMP runs an embedded server, returned so that it can be shut down
// after the node.
func newBus(conf *config.Config, logger *logrus.Entry) (events.Bus, *wamp.Server, error) {
	switch conf.Bus {
	case config.BusInmem:
		return events.NewInmemBus(logger), nil, nil
	case config.BusWAMP:
		if _config.WAMPConnect != "" {
			bus, err := wamp.NewRemoteBus(_config.WAMPConnect, conf.WAMPRealm, logger)
			if err != nil {
				return nil, nil, err
			}
			return bus, nil, nil
		}

		server, err := wamp.NewServer(conf.WAMPAddr, conf.WAMPRealm, _config.WAMPCert, _config.WAMPKey, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := server.Listen(); err != nil {
			server.Shutdown()
			return nil, nil, err
		}
		go server.Run()

		bus, err := wamp.NewLocalBus(server.Router(), conf.WAMPRealm, logger)
		if err != nil {
			server.Shutdown()
			return nil, nil, err
		}
		return bus, server, nil
	case config.BusNATS:
		bus, err := natsbus.NewBus(conf.NATSURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return bus, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus %q", conf.Bus)
	}
}

func loadOracleKeys(conf *config.Config) ([]*ecdsa.PrivateKey, error) {
	res := make([]*ecdsa.PrivateKey, conf.Oracles)
	for i := range res {
		key, _, err := keys.NewSimpleKeyfile(conf.OracleKeyfile(i)).ReadOrCreateKey()
		if err != nil {
			return nil, fmt.Errorf("oracle %d: %v", i, err)
		}
		res[i] = key
	}
	return res, nil
}

// seed funds the owner airline and registers the catalog flights, departing
// relative to now.
func seed(n *node.Node, owner common.Address, params ledger.Params, catalog []config.CatalogFlight, now time.Time) error {
	txs := []proxy.Tx{proxy.NewFundTx(owner, owner, params.MinStake)}
	for _, f := range catalog {
		txs = append(txs, proxy.NewRegisterFlightTx(owner, owner, f.Code, now.Add(f.Offset).Unix()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	for _, tx := range txs {
		receipt, err := n.SubmitTx(ctx, tx)
		if err != nil {
			return err
		}
		if err := receipt.Error(); err != nil {
			return fmt.Errorf("%s: %v", tx.Type, err)
		}
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Surety.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Surety.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Surety.LogFile, "Also write logs to this file, as JSON")

	// Service
	cmd.Flags().Bool("no-service", _config.Surety.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Surety.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Surety.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Surety.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Bool("bootstrap", _config.Surety.Bootstrap, "Load from database")
	cmd.Flags().Int("cache-size", _config.Surety.CacheSize, "Number of items in LRU caches")

	// Node configuration
	cmd.Flags().Int("block-size", _config.Surety.BlockSize, "Max number of transactions per block")
	cmd.Flags().Duration("block-timeout", _config.Surety.BlockTimeout, "Time to wait for a block to fill up")
	cmd.Flags().Int("snapshot-interval", _config.Surety.SnapshotInterval, "Number of blocks between snapshots")

	// Events
	cmd.Flags().String("bus", _config.Surety.Bus, "Event bus: inmem, wamp, nats")
	cmd.Flags().String("wamp-listen", _config.Surety.WAMPAddr, "Listen IP:Port for the WAMP router")
	cmd.Flags().String("wamp-realm", _config.Surety.WAMPRealm, "WAMP realm of ledger events")
	cmd.Flags().String("wamp-cert", _config.WAMPCert, "TLS certificate of the WAMP router")
	cmd.Flags().String("wamp-key", _config.WAMPKey, "TLS key of the WAMP router")
	cmd.Flags().String("wamp-connect", _config.WAMPConnect, "URL of an external WAMP router, instead of the embedded one")
	cmd.Flags().String("nats-url", _config.Surety.NATSURL, "URL of the NATS server")

	// Oracles
	cmd.Flags().Int("oracles", _config.Surety.Oracles, "Number of oracles run by this node")
	cmd.Flags().Int("oracle-workers", _config.Surety.OracleWorkers, "Number of concurrent oracle responses")

	// Ledger
	cmd.Flags().String("min-stake", _config.Surety.MinStake, "Airline stake, in ether")
	cmd.Flags().String("registration-fee", _config.Surety.RegistrationFee, "Oracle registration fee, in ether")
	cmd.Flags().String("premium-cap", _config.Surety.PremiumCap, "Max insurance premium, in ether")
	cmd.Flags().Int("index-space", _config.Surety.IndexSpace, "Size of the oracle index space")
	cmd.Flags().StringSlice("flights", _config.Surety.Flights, "Flights registered in a fresh ledger, as CODE:OFFSET")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Surety.SetDataDir(_config.Surety.DataDir)

	// Bootstrapping needs a database
	if _config.Surety.Bootstrap {
		_config.Surety.Store = true
	}

	logFields := logrus.Fields{
		"surety.DataDir":          _config.Surety.DataDir,
		"surety.LogLevel":         _config.Surety.LogLevel,
		"surety.ServiceAddr":      _config.Surety.ServiceAddr,
		"surety.NoService":        _config.Surety.NoService,
		"surety.Store":            _config.Surety.Store,
		"surety.BlockSize":        _config.Surety.BlockSize,
		"surety.BlockTimeout":     _config.Surety.BlockTimeout,
		"surety.SnapshotInterval": _config.Surety.SnapshotInterval,
		"surety.Bus":              _config.Surety.Bus,
		"surety.Oracles":          _config.Surety.Oracles,
		"surety.OracleWorkers":    _config.Surety.OracleWorkers,
		"surety.MinStake":         _config.Surety.MinStake,
		"surety.RegistrationFee":  _config.Surety.RegistrationFee,
		"surety.PremiumCap":       _config.Surety.PremiumCap,
		"surety.IndexSpace":       _config.Surety.IndexSpace,
		"surety.Flights":          _config.Surety.Flights,
	}

	if _config.Surety.Store {
		logFields["surety.DatabaseDir"] = _config.Surety.DatabaseDir
		logFields["surety.CacheSize"] = _config.Surety.CacheSize
		logFields["surety.Bootstrap"] = _config.Surety.Bootstrap
	}

	switch _config.Surety.Bus {
	case config.BusWAMP:
		logFields["surety.WAMPAddr"] = _config.Surety.WAMPAddr
		logFields["surety.WAMPRealm"] = _config.Surety.WAMPRealm
		logFields["WAMPConnect"] = _config.WAMPConnect
	case config.BusNATS:
		logFields["surety.NATSURL"] = _config.Surety.NATSURL
	}

	_config.Surety.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/surety.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.Surety.DataDir)    // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Surety.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Surety.Logger().Debugf("No config file found in: %s", _config.Surety.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
