// Package wamp publishes ledger events on a WAMP topic.
//
// Server embeds a nexus router exposed over WebSockets, to which dapp
// frontends and remote oracle agents connect. Bus is a WAMP client, connected
// either locally to an embedded Server or to a remote router, that publishes
// events on the topic and relays the events it receives to local subscribers.
package wamp

const (
	// Topic is the WAMP topic carrying ledger events.
	Topic = "io.surety.events"

	// DefaultRealm ...
	DefaultRealm = "surety"
)
