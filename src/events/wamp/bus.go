package wamp

import (
	"context"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/surety/src/events"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/sirupsen/logrus"
)

// Bus implements events.Bus over a WAMP topic.
type Bus struct {
	*events.Fanout
	client *client.Client
	logger *logrus.Entry
}

// NewLocalBus connects a Bus to a router running in the same process.
func NewLocalBus(r router.Router, realm string, logger *logrus.Entry) (*Bus, error) {
	cli, err := client.ConnectLocal(r, clientConfig(realm, logger))
	if err != nil {
		return nil, err
	}
	return newBus(cli, logger)
}

// NewRemoteBus connects a Bus to the router at url, eg. ws://host:port/.
func NewRemoteBus(url string, realm string, logger *logrus.Entry) (*Bus, error) {
	cli, err := client.ConnectNet(context.Background(), url, clientConfig(realm, logger))
	if err != nil {
		return nil, err
	}
	return newBus(cli, logger)
}

func clientConfig(realm string, logger *logrus.Entry) client.Config {
	return client.Config{
		Realm:           realm,
		ResponseTimeout: 10 * time.Second,
		Logger:          logger,
	}
}

func newBus(cli *client.Client, logger *logrus.Entry) (*Bus, error) {
	logger = logger.WithField("component", "wamp-bus")

	b := &Bus{
		Fanout: events.NewFanout(logger),
		client: cli,
		logger: logger,
	}

	if err := cli.Subscribe(Topic, b.eventHandler, nil); err != nil {
		cli.Close()
		return nil, err
	}

	return b, nil
}

func (b *Bus) eventHandler(event *wamp.Event) {
	if len(event.Arguments) != 1 {
		b.logger.Warnf("Event should contain 1 argument, not %d", len(event.Arguments))
		return
	}

	raw, ok := wamp.AsString(event.Arguments[0])
	if !ok {
		b.logger.Warn("Error reading event argument")
		return
	}

	ev, err := events.Unmarshal([]byte(raw))
	if err != nil {
		b.logger.WithError(err).Warn("Error decoding event")
		return
	}

	b.Dispatch(ev)
}

// Publish implements the events.Bus interface. The publisher receives its
// own events, so local subscribers see them too.
func (b *Bus) Publish(ev ledger.Event) error {
	raw, err := events.Marshal(ev)
	if err != nil {
		return err
	}

	return b.client.Publish(Topic,
		wamp.Dict{wamp.OptExcludeMe: false},
		wamp.List{string(raw)},
		nil)
}

// Close implements the events.Bus interface.
func (b *Bus) Close() error {
	b.CloseSubscriptions()
	if err := b.client.Unsubscribe(Topic); err != nil {
		b.logger.WithError(err).Debug("Unsubscribe")
	}
	return b.client.Close()
}
