package realtime

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rubiojr/quill/pkg/log"
)

// State of a channel in the Manager.
type State int

const (
	// Inactive channels have no bookkeeping entry.
	Inactive State = iota
	// Active channels have at least one live subscription.
	Active
	// PendingTeardown channels have no subscriptions and are released from
	// the transport when the grace window elapses.
	PendingTeardown
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case PendingTeardown:
		return "pending-teardown"
	}
	return "inactive"
}

// Handler receives decoded events. It runs on the transport's read
// goroutine and must not block.
type Handler func(Event)

type channelState struct {
	state    State
	refs     int
	deadline time.Time
	timer    Timer
	// gen invalidates timers that fire after being superseded.
	gen    uint64
	events map[string]map[uint64]*Subscription
}

// Manager reference-counts channel subscriptions over a single transport.
// Construct one per session and Close it on logout.
type Manager struct {
	mu        sync.Mutex
	factory   TransportFactory
	transport Transport
	disabled  bool
	grace     time.Duration
	clock     Clock
	channels  map[string]*channelState
	nextID    uint64
	epoch     uint64
	log       *log.Logger
}

type Option func(*Manager)

func WithGraceWindow(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

const DefaultGraceWindow = 5 * time.Second

// NewManager returns a manager that opens its transport through factory on
// first use. A nil factory yields a manager that never delivers anything.
func NewManager(factory TransportFactory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		disabled: factory == nil,
		grace:    DefaultGraceWindow,
		clock:    realClock{},
		channels: make(map[string]*channelState),
		log:      log.ForService("realtime"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether the manager can deliver events.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disabled
}

func (m *Manager) transportLocked() Transport {
	if m.transport != nil || m.disabled {
		return m.transport
	}
	t, err := m.factory()
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			m.log.Debugf("realtime delivery disabled: %v", err)
			m.disabled = true
		} else {
			m.log.Warnf("opening realtime transport: %v", err)
		}
		return nil
	}
	m.transport = t
	return t
}

// Subscribe registers h for event on channel. It never fails: when the
// transport is unavailable the returned Subscription is inert.
func (m *Manager) Subscribe(channel, event string, h Handler) *Subscription {
	if channel == "" || event == "" {
		return &Subscription{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.transportLocked()
	if t == nil {
		return &Subscription{}
	}

	st, ok := m.channels[channel]
	switch {
	case !ok:
		if err := t.Subscribe(channel); err != nil {
			m.log.Warnf("subscribing to %s: %v", channel, err)
			return &Subscription{}
		}
		st = &channelState{state: Active, events: make(map[string]map[uint64]*Subscription)}
		m.channels[channel] = st
		m.log.Debugf("subscribed to %s", channel)
	case st.state == PendingTeardown:
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.gen++
		st.state = Active
		st.deadline = time.Time{}
		m.log.Debugf("teardown of %s cancelled", channel)
	}
	st.refs++

	listeners, bound := st.events[event]
	if !bound {
		listeners = make(map[uint64]*Subscription)
		st.events[event] = listeners
		t.Bind(channel, event, m.dispatcher(channel, event))
	}

	m.nextID++
	sub := &Subscription{m: m, channel: channel, event: event, id: m.nextID, epoch: m.epoch}
	sub.handler.Store(&h)
	listeners[sub.id] = sub
	return sub
}

func (m *Manager) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.epoch != m.epoch {
		return
	}
	st, ok := m.channels[sub.channel]
	if !ok {
		return
	}
	if listeners := st.events[sub.event]; listeners != nil {
		if _, live := listeners[sub.id]; !live {
			return
		}
		delete(listeners, sub.id)
	}
	if st.refs > 0 {
		st.refs--
	}
	if st.refs > 0 {
		return
	}

	st.gen++
	st.state = PendingTeardown
	if m.grace <= 0 {
		m.teardownLocked(sub.channel, st)
		return
	}
	gen := st.gen
	channel := sub.channel
	st.deadline = m.clock.Now().Add(m.grace)
	st.timer = m.clock.AfterFunc(m.grace, func() { m.expire(channel, gen) })
	m.log.Debugf("%s idle, releasing in %s", channel, m.grace)
}

func (m *Manager) expire(channel string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.channels[channel]
	if !ok || st.gen != gen || st.state != PendingTeardown || st.refs != 0 {
		return
	}
	m.teardownLocked(channel, st)
}

func (m *Manager) teardownLocked(channel string, st *channelState) {
	delete(m.channels, channel)
	if m.transport == nil {
		return
	}
	for event := range st.events {
		m.transport.Unbind(channel, event)
	}
	if err := m.transport.Unsubscribe(channel); err != nil {
		m.log.Warnf("unsubscribing from %s: %v", channel, err)
		return
	}
	m.log.Debugf("released %s", channel)
}

// dispatcher is the single transport handler for a (channel, event) pair.
// It decodes once and fans out to the current handler of every listener.
func (m *Manager) dispatcher(channel, event string) func([]byte) {
	return func(data []byte) {
		ev, err := Decode(event, data)
		if err != nil {
			m.log.Warnf("dropping %s on %s: %v", event, channel, err)
			return
		}

		m.mu.Lock()
		var subs []*Subscription
		if st, ok := m.channels[channel]; ok {
			for _, s := range st.events[event] {
				subs = append(subs, s)
			}
		}
		m.mu.Unlock()

		sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
		for _, s := range subs {
			if h := s.handler.Load(); h != nil && *h != nil {
				(*h)(ev)
			}
		}
	}
}

// ChannelState reports the state and reference count of channel.
func (m *Manager) ChannelState(channel string) (State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.channels[channel]
	if !ok {
		return Inactive, 0
	}
	return st.state, st.refs
}

// Close drops every subscription and disconnects the transport. Handles
// obtained before Close become inert. The next Subscribe reconnects.
// Handlers already running may call back into the manager while the
// transport shuts down.
func (m *Manager) Close() error {
	m.mu.Lock()
	for _, st := range m.channels {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	m.channels = make(map[string]*channelState)
	m.epoch++
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.Close()
}

// Subscription is a handle on one Subscribe call.
type Subscription struct {
	m       *Manager
	channel string
	event   string
	id      uint64
	epoch   uint64
	handler atomic.Pointer[Handler]
	once    sync.Once
}

// Live reports whether the subscription is backed by a transport.
func (s *Subscription) Live() bool {
	return s != nil && s.m != nil
}

func (s *Subscription) Channel() string {
	if s == nil {
		return ""
	}
	return s.channel
}

// Update swaps the handler without touching the transport binding.
func (s *Subscription) Update(h Handler) {
	if s == nil {
		return
	}
	s.handler.Store(&h)
}

// Unsubscribe releases the subscription. Calling it more than once is a
// no-op.
func (s *Subscription) Unsubscribe() {
	if !s.Live() {
		return
	}
	s.once.Do(func() { s.m.unsubscribe(s) })
}
