package events

import (
	"bytes"
	"sync"

	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Bus publishes ledger events to subscribers.
type Bus interface {
	// Publish sends an event to every subscriber.
	Publish(ev ledger.Event) error
	// Subscribe returns a channel receiving published events and a function
	// that cancels the subscription and closes the channel.
	Subscribe() (<-chan ledger.Event, func())
	// Close cancels all subscriptions and releases the transport.
	Close() error
}

// SubscriberBuffer is the capacity of subscriber channels. Events are dropped
// for subscribers that fall that far behind.
const SubscriberBuffer = 256

// Fanout delivers events to local subscribers. It is embedded by every Bus
// implementation.
type Fanout struct {
	sync.Mutex
	subs   map[int]chan ledger.Event
	next   int
	closed bool
	logger *logrus.Entry
}

// NewFanout ...
func NewFanout(logger *logrus.Entry) *Fanout {
	return &Fanout{
		subs:   make(map[int]chan ledger.Event),
		logger: logger,
	}
}

// Subscribe implements part of the Bus interface.
func (f *Fanout) Subscribe() (<-chan ledger.Event, func()) {
	f.Lock()
	defer f.Unlock()

	ch := make(chan ledger.Event, SubscriberBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.next
	f.next++
	f.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.Lock()
			defer f.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}

	return ch, cancel
}

// Dispatch delivers an event to every subscriber without blocking.
func (f *Fanout) Dispatch(ev ledger.Event) {
	f.Lock()
	defer f.Unlock()

	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"event":      ev.Type.String(),
			}).Warn("Subscriber lagging, event dropped")
		}
	}
}

// CloseSubscriptions closes every subscriber channel. Later subscriptions get
// closed channels.
func (f *Fanout) CloseSubscriptions() {
	f.Lock()
	defer f.Unlock()

	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	f.closed = true
}

// InmemBus is a Bus that never leaves the process.
type InmemBus struct {
	*Fanout
}

// NewInmemBus ...
func NewInmemBus(logger *logrus.Entry) *InmemBus {
	return &InmemBus{
		Fanout: NewFanout(logger.WithField("component", "bus")),
	}
}

// Publish implements the Bus interface.
func (b *InmemBus) Publish(ev ledger.Event) error {
	b.Dispatch(ev)
	return nil
}

// Close implements the Bus interface.
func (b *InmemBus) Close() error {
	b.CloseSubscriptions()
	return nil
}

// Marshal returns the wire encoding of an event.
func Marshal(ev ledger.Event) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(ev); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes an event encoded with Marshal.
func Unmarshal(data []byte) (ledger.Event, error) {
	var ev ledger.Event

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bytes.NewBuffer(data), jh)

	if err := dec.Decode(&ev); err != nil {
		return ledger.Event{}, err
	}

	return ev, nil
}
