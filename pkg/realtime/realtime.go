// Package realtime delivers chat events from the hosted pub/sub service to
// the views that need them.
//
// A Manager owns one Transport (the websocket connection to the service)
// and a reference count per channel. Views subscribe to a (channel, event)
// pair and get a Subscription back; unsubscribing decrements the count.
// When a channel's count drops to zero the transport subscription is kept
// for a grace window so that a view closing and immediately reopening the
// same conversation does not flap the subscription on the server.
//
// Payloads are decoded into typed events (NewMessage, MessageNotification,
// NewConversation) as they leave the transport. Unknown events and
// malformed payloads are logged and dropped.
//
// Without an application key the Manager hands out inert subscriptions:
// nothing is delivered and nothing fails.
package realtime

import (
	"errors"
	"time"
)

// ErrNotConfigured is returned by a TransportFactory when no application key
// is available. The Manager treats it as "run without realtime".
var ErrNotConfigured = errors.New("realtime: application key not configured")

// Transport is a connection to the pub/sub service. Bound handlers receive
// the raw event payload.
type Transport interface {
	Subscribe(channel string) error
	Unsubscribe(channel string) error
	Bind(channel, event string, fn func(data []byte))
	Unbind(channel, event string)
	Close() error
}

// TransportFactory opens a Transport. The Manager calls it lazily on the
// first Subscribe.
type TransportFactory func() (Transport, error)

// Clock abstracts the timers behind the grace window.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
