package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/realtime"
)

var errBackend = errors.New("backend unavailable")

type sendResult struct {
	msg *models.Message
	err error
}

type sendCall struct {
	conversationID string
	req            models.NewMessage
	reply          chan sendResult
}

// fakeService parks every SendMessage until the test replies.
type fakeService struct {
	sends     chan sendCall
	markReads atomic.Int32
	history   []models.Message
	listErr   error
}

func newFakeService() *fakeService {
	return &fakeService{sends: make(chan sendCall, 8)}
}

func (f *fakeService) ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Message(nil), f.history...), nil
}

func (f *fakeService) SendMessage(ctx context.Context, conversationID string, m models.NewMessage) (*models.Message, error) {
	c := sendCall{conversationID: conversationID, req: m, reply: make(chan sendResult, 1)}
	f.sends <- c
	r := <-c.reply
	return r.msg, r.err
}

func (f *fakeService) MarkRead(ctx context.Context, conversationID string) error {
	f.markReads.Add(1)
	return nil
}

func (f *fakeService) nextSend(t *testing.T) sendCall {
	t.Helper()
	select {
	case c := <-f.sends:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no send request")
	}
	return sendCall{}
}

type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
}

func (f *fakeTransport) Subscribe(string) error   { return nil }
func (f *fakeTransport) Unsubscribe(string) error { return nil }
func (f *fakeTransport) Close() error             { return nil }

func (f *fakeTransport) Bind(channel, event string, fn func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]func([]byte))
	}
	f.handlers[channel+"/"+event] = fn
}

func (f *fakeTransport) Unbind(channel, event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, channel+"/"+event)
}

func (f *fakeTransport) emit(channel, event, data string) {
	f.mu.Lock()
	fn := f.handlers[channel+"/"+event]
	f.mu.Unlock()
	if fn != nil {
		fn([]byte(data))
	}
}

func newTestManager(t *testing.T) (*realtime.Manager, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	m := realtime.NewManager(func() (realtime.Transport, error) { return ft, nil })
	t.Cleanup(func() { _ = m.Close() })
	return m, ft
}

type countingPlayer struct {
	plays atomic.Int32
}

func (p *countingPlayer) Play() { p.plays.Add(1) }

type fakeLister struct {
	calls atomic.Int32
	convs []models.Conversation
}

func (f *fakeLister) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	f.calls.Add(1)
	return f.convs, nil
}
