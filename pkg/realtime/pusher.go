package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/version"
)

// PusherProtocol is the channels protocol revision quill speaks.
const PusherProtocol = "7"

// ErrClosed is returned by operations on a closed Pusher.
var ErrClosed = errors.New("realtime: transport closed")

// PusherConfig locates the hosted pub/sub application.
type PusherConfig struct {
	AppKey  string
	Cluster string
	// Host overrides the cluster host, e.g. "localhost:6001" for a
	// self-hosted server.
	Host     string
	Insecure bool

	// ActivityTimeout is the idle period after which the client pings. The
	// server may shorten it in connection_established.
	ActivityTimeout  time.Duration
	PongTimeout      time.Duration
	HandshakeTimeout time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

func (c PusherConfig) withDefaults() PusherConfig {
	if c.ActivityTimeout <= 0 {
		c.ActivityTimeout = 120 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// URL returns the websocket endpoint for the application.
func (c PusherConfig) URL() (string, error) {
	if c.AppKey == "" {
		return "", ErrNotConfigured
	}
	host := c.Host
	if host == "" {
		if c.Cluster == "" {
			return "", fmt.Errorf("realtime: cluster or host required")
		}
		host = "ws-" + c.Cluster + ".pusher.com"
	}
	scheme := "wss"
	if c.Insecure {
		scheme = "ws"
	}
	q := url.Values{}
	q.Set("protocol", PusherProtocol)
	q.Set("client", "quill")
	q.Set("version", version.Version)
	q.Set("flash", "false")
	u := url.URL{Scheme: scheme, Host: host, Path: "/app/" + c.AppKey, RawQuery: q.Encode()}
	return u.String(), nil
}

// NewPusherFactory returns a TransportFactory dialing cfg. With an empty
// AppKey the factory returns ErrNotConfigured.
func NewPusherFactory(cfg PusherConfig) TransportFactory {
	return func() (Transport, error) {
		return DialPusher(cfg)
	}
}

// PusherError is a pusher:error message or a 4000-4299 close code.
type PusherError struct {
	Code    int
	Message string
}

func (e *PusherError) Error() string {
	return fmt.Sprintf("pusher error %d: %s", e.Code, e.Message)
}

// Fatal errors mean the connection must not be retried (bad key, app
// disabled, over quota).
func (e *PusherError) Fatal() bool { return e.Code >= 4000 && e.Code < 4100 }

// Throttled errors ask the client to wait before reconnecting (server over
// capacity).
func (e *PusherError) Throttled() bool { return e.Code >= 4100 && e.Code < 4200 }

// Immediate errors ask the client to reconnect without backing off.
func (e *PusherError) Immediate() bool { return e.Code >= 4200 && e.Code < 4300 }

type pusherFrame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// payload unwraps data that the server sends as a JSON-encoded string.
func payload(raw json.RawMessage) []byte {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return []byte(s)
		}
	}
	return raw
}

// Pusher is a Transport speaking the Pusher channels protocol over a
// websocket. It reconnects with capped exponential backoff and resubscribes
// every channel it was asked to hold.
type Pusher struct {
	cfg    PusherConfig
	url    string
	dialer *websocket.Dialer
	header http.Header

	mu       sync.Mutex
	channels map[string]struct{}
	handlers map[string]map[string]func([]byte)
	conn     *websocket.Conn
	socketID string

	writeMu      sync.Mutex
	lastActivity atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	log       *log.Logger
}

// DialPusher starts a Pusher transport. It returns immediately; the
// connection is established in the background.
func DialPusher(cfg PusherConfig) (*Pusher, error) {
	cfg = cfg.withDefaults()
	u, err := cfg.URL()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pusher{
		cfg:      cfg,
		url:      u,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		header:   http.Header{"User-Agent": []string{version.UserAgent()}},
		channels: make(map[string]struct{}),
		handlers: make(map[string]map[string]func([]byte)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log.ForService("pusher"),
	}
	go p.run()
	return p, nil
}

// Connected reports whether the handshake completed on the current socket.
func (p *Pusher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

// socket returns the id assigned by connection_established.
func (p *Pusher) socket() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.socketID
}

func (p *Pusher) Subscribe(channel string) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[channel] = struct{}{}
	if p.conn != nil {
		p.sendLocked(pusherFrame{Event: "pusher:subscribe", Data: channelData(channel)})
	}
	return nil
}

func (p *Pusher) Unsubscribe(channel string) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channel]; !ok {
		return nil
	}
	delete(p.channels, channel)
	if p.conn != nil {
		p.sendLocked(pusherFrame{Event: "pusher:unsubscribe", Data: channelData(channel)})
	}
	return nil
}

func (p *Pusher) Bind(channel, event string, fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	events, ok := p.handlers[channel]
	if !ok {
		events = make(map[string]func([]byte))
		p.handlers[channel] = events
	}
	events[event] = fn
}

func (p *Pusher) Unbind(channel, event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if events, ok := p.handlers[channel]; ok {
		delete(events, event)
		if len(events) == 0 {
			delete(p.handlers, channel)
		}
	}
}

// Close disconnects and stops reconnecting. It waits for the connection
// goroutine to exit.
func (p *Pusher) Close() error {
	p.closeOnce.Do(p.cancel)
	<-p.done
	return nil
}

func channelData(channel string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"channel": channel})
	return b
}

// sendLocked writes on the current socket. Write failures surface on the
// read side, which tears the session down and reconnects.
func (p *Pusher) sendLocked(f pusherFrame) {
	if err := p.write(p.conn, f); err != nil {
		p.log.Debugf("write %s: %v", f.Event, err)
	}
}

func (p *Pusher) write(conn *websocket.Conn, f pusherFrame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(p.cfg.HandshakeTimeout))
	return conn.WriteJSON(f)
}

func (p *Pusher) sleep(d time.Duration) bool {
	select {
	case <-p.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (p *Pusher) run() {
	defer close(p.done)

	backoff := p.cfg.InitialBackoff
	for {
		conn, _, err := p.dialer.DialContext(p.ctx, p.url, p.header)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.log.Warnf("dial failed (%v), retrying in %s", err, backoff)
			if !p.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff, p.cfg.MaxBackoff)
			continue
		}

		established, err := p.session(conn)
		if p.ctx.Err() != nil {
			return
		}

		var perr *PusherError
		isPusher := errors.As(err, &perr)
		switch {
		case isPusher && perr.Fatal():
			p.log.Errorf("connection refused, giving up: %v", perr)
			return
		case isPusher && perr.Immediate():
			p.log.Debugf("reconnecting: %v", perr)
			backoff = p.cfg.InitialBackoff
			continue
		case isPusher && perr.Throttled():
			// Not reset by an established session: repeated 4100s keep growing the wait.
			p.log.Warnf("%v, retrying in %s", perr, backoff)
			if !p.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff, p.cfg.MaxBackoff)
			continue
		case established:
			backoff = p.cfg.InitialBackoff
			p.log.Warnf("connection lost (%v), reconnecting", err)
			if !p.sleep(250 * time.Millisecond) {
				return
			}
			continue
		}
		p.log.Warnf("handshake failed (%v), retrying in %s", err, backoff)
		if !p.sleep(backoff) {
			return
		}
		backoff = nextBackoff(backoff, p.cfg.MaxBackoff)
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	cur *= 2
	if cur > limit {
		cur = limit
	}
	return cur
}

// session runs one websocket connection until it fails. established is
// true once connection_established was received.
func (p *Pusher) session(conn *websocket.Conn) (established bool, err error) {
	stop := context.AfterFunc(p.ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(p.cfg.HandshakeTimeout))
	f, err := readFrame(conn)
	if err != nil {
		return false, err
	}
	switch f.Event {
	case "pusher:connection_established":
	case "pusher:error":
		return false, parseError(f.Data)
	default:
		return false, fmt.Errorf("unexpected handshake event %q", f.Event)
	}

	var est struct {
		SocketID        string `json:"socket_id"`
		ActivityTimeout int    `json:"activity_timeout"`
	}
	if err := json.Unmarshal(payload(f.Data), &est); err != nil {
		return false, fmt.Errorf("connection_established: %w", err)
	}
	activity := p.cfg.ActivityTimeout
	if server := time.Duration(est.ActivityTimeout) * time.Second; server > 0 && server < activity {
		activity = server
	}

	p.mu.Lock()
	p.conn = conn
	p.socketID = est.SocketID
	for ch := range p.channels {
		p.sendLocked(pusherFrame{Event: "pusher:subscribe", Data: channelData(ch)})
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.conn == conn {
			p.conn = nil
			p.socketID = ""
		}
		p.mu.Unlock()
	}()
	p.log.Debugf("connected, socket %s", est.SocketID)

	p.touch()
	kaDone := make(chan struct{})
	defer close(kaDone)
	go p.keepalive(conn, activity, kaDone)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(activity + p.cfg.PongTimeout))
		f, err := readFrame(conn)
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code >= 4000 && ce.Code < 4300 {
				return true, &PusherError{Code: ce.Code, Message: ce.Text}
			}
			return true, err
		}
		p.touch()

		switch f.Event {
		case "":
			continue
		case "pusher:ping":
			if err := p.write(conn, pusherFrame{Event: "pusher:pong", Data: json.RawMessage("{}")}); err != nil {
				return true, err
			}
		case "pusher:pong":
		case "pusher:error":
			perr := parseError(f.Data)
			if perr.Code >= 4000 && perr.Code < 4300 {
				return true, perr
			}
			p.log.Warnf("%v", perr)
		case "pusher_internal:subscription_succeeded":
			p.log.Debugf("subscribed to %s", f.Channel)
		case "pusher:subscription_error":
			p.log.Warnf("subscription to %s failed: %s", f.Channel, payload(f.Data))
		default:
			p.dispatch(f)
		}
	}
}

func (p *Pusher) dispatch(f pusherFrame) {
	if f.Channel == "" {
		return
	}
	p.mu.Lock()
	fn := p.handlers[f.Channel][f.Event]
	p.mu.Unlock()
	if fn == nil {
		p.log.Debugf("no handler for %s on %s", f.Event, f.Channel)
		return
	}
	fn(payload(f.Data))
}

func (p *Pusher) touch() {
	p.lastActivity.Store(time.Now().UnixNano())
}

// keepalive pings the server after activity of silence.
func (p *Pusher) keepalive(conn *websocket.Conn, activity time.Duration, done <-chan struct{}) {
	tick := activity / 4
	if tick <= 0 {
		tick = activity
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			idle := time.Since(time.Unix(0, p.lastActivity.Load()))
			if idle < activity {
				continue
			}
			if err := p.write(conn, pusherFrame{Event: "pusher:ping", Data: json.RawMessage("{}")}); err != nil {
				return
			}
		}
	}
}

func readFrame(conn *websocket.Conn) (pusherFrame, error) {
	var f pusherFrame
	_, data, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		// malformed frames are skipped
		return pusherFrame{}, nil
	}
	return f, nil
}

func parseError(raw json.RawMessage) *PusherError {
	var e struct {
		Code    *int   `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload(raw), &e); err != nil {
		return &PusherError{Message: string(raw)}
	}
	perr := &PusherError{Message: e.Message}
	if e.Code != nil {
		perr.Code = *e.Code
	}
	return perr
}
