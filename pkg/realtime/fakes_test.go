package realtime

import (
	"errors"
	"sort"
	"sync"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return &fakeTimerHandle{c: c, t: t}
}

type fakeTimerHandle struct {
	c *fakeClock
	t *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if h.t.stopped || h.t.fired {
		return false
	}
	h.t.stopped = true
	return true
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeTransport struct {
	mu          sync.Mutex
	subscribes  map[string]int
	unsubscribe map[string]int
	binds       map[string]int
	handlers    map[string]map[string]func([]byte)
	closed      bool
	subErr      error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subscribes:  make(map[string]int),
		unsubscribe: make(map[string]int),
		binds:       make(map[string]int),
		handlers:    make(map[string]map[string]func([]byte)),
	}
}

func (f *fakeTransport) Subscribe(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.subscribes[channel]++
	return nil
}

func (f *fakeTransport) Unsubscribe(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribe[channel]++
	return nil
}

func (f *fakeTransport) Bind(channel, event string, fn func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[channel] == nil {
		f.handlers[channel] = make(map[string]func([]byte))
	}
	f.handlers[channel][event] = fn
	f.binds[channel+"/"+event]++
}

func (f *fakeTransport) Unbind(channel, event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers[channel], event)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) bound(channel, event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[channel][event]
	return ok
}

func (f *fakeTransport) counts(channel string) (subs, unsubs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes[channel], f.unsubscribe[channel]
}

// emit delivers data as the server would. It reports whether a handler was
// bound.
func (f *fakeTransport) emit(channel, event, data string) bool {
	f.mu.Lock()
	fn := f.handlers[channel][event]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn([]byte(data))
	return true
}

type factoryCounter struct {
	mu    sync.Mutex
	calls int
	t     *fakeTransport
	err   error
}

func (fc *factoryCounter) factory() (Transport, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.calls++
	if fc.err != nil {
		return nil, fc.err
	}
	fc.t = newFakeTransport()
	return fc.t, nil
}

var errDial = errors.New("dial refused")
