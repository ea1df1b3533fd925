// Package nats publishes ledger events on a NATS subject.
package nats

import (
	"time"

	"github.com/mosaicnetworks/surety/src/events"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Subject is the NATS subject carrying ledger events.
const Subject = "surety.events"

// Bus implements events.Bus over a NATS subject.
type Bus struct {
	*events.Fanout
	conn   *nats.Conn
	sub    *nats.Subscription
	logger *logrus.Entry
}

// NewBus connects to the NATS server at url and subscribes to Subject.
func NewBus(url string, logger *logrus.Entry) (*Bus, error) {
	logger = logger.WithField("component", "nats-bus")

	conn, err := nats.Connect(url,
		nats.Name("surety"),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("Disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("Reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	b := &Bus{
		Fanout: events.NewFanout(logger),
		conn:   conn,
		logger: logger,
	}

	sub, err := conn.Subscribe(Subject, b.msgHandler)
	if err != nil {
		conn.Close()
		return nil, err
	}
	b.sub = sub

	// make sure the subscription is registered before anything is published
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, err
	}

	return b, nil
}

func (b *Bus) msgHandler(msg *nats.Msg) {
	ev, err := events.Unmarshal(msg.Data)
	if err != nil {
		b.logger.WithError(err).Warn("Error decoding event")
		return
	}
	b.Dispatch(ev)
}

// Publish implements the events.Bus interface.
func (b *Bus) Publish(ev ledger.Event) error {
	raw, err := events.Marshal(ev)
	if err != nil {
		return err
	}
	return b.conn.Publish(Subject, raw)
}

// Close implements the events.Bus interface.
func (b *Bus) Close() error {
	b.CloseSubscriptions()
	if err := b.sub.Unsubscribe(); err != nil {
		b.logger.WithError(err).Debug("Unsubscribe")
	}
	b.conn.Close()
	return nil
}
