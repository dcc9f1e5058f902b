// Package chat holds the state behind an open conversation and the user's
// inbox: the visible message list, the compose draft, optimistic sends and
// the merge of realtime deliveries.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/optimistic"
	"github.com/rubiojr/quill/pkg/realtime"
)

const DefaultHistoryLimit = 50

// Service is the part of the REST API a Window talks to.
type Service interface {
	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID string, m models.NewMessage) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
}

type ChangeKind int

const (
	// Loaded: history was merged into the list.
	Loaded ChangeKind = iota
	// Pending: a local message was inserted under a temporary id.
	Pending
	// Confirmed: the server accepted TempID and returned Message.
	Confirmed
	// RolledBack: the send of TempID failed and the entry was removed.
	RolledBack
	// Received: a realtime delivery was appended.
	Received
)

// Change describes one mutation of the visible list.
type Change struct {
	Kind    ChangeKind
	TempID  string
	Message models.Message
}

// Options tune a Window. OnChange and OnError may be called from any
// goroutine.
type Options struct {
	HistoryLimit int
	OnChange     func(Change)
	OnError      func(error)
	Now          func() time.Time
}

// Window is one open conversation.
type Window struct {
	conversationID string
	me             models.User
	svc            Service
	opts           Options
	messages       *optimistic.List[models.Message]
	token          *optimistic.Token

	mu     sync.Mutex
	draft  string
	sub    *realtime.Subscription
	closed bool

	wg  sync.WaitGroup
	log *log.Logger
}

func messageID(m models.Message) string { return m.ID }

func NewWindow(conversationID string, me models.User, svc Service, opts Options) *Window {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Window{
		conversationID: conversationID,
		me:             me,
		svc:            svc,
		opts:           opts,
		messages:       optimistic.NewList(messageID),
		token:          optimistic.NewToken(),
		log:            log.ForService("chat"),
	}
}

func (w *Window) ConversationID() string { return w.conversationID }

// Attach starts realtime delivery for the conversation. Attaching again
// replaces the previous subscription.
func (w *Window) Attach(m *realtime.Manager) {
	sub := m.SubscribeConversation(w.conversationID, func(msg models.Message) {
		w.Receive(msg)
	})

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	old := w.sub
	w.sub = sub
	w.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
}

// Load fetches the most recent history and merges it with anything already
// delivered.
func (w *Window) Load(ctx context.Context) error {
	msgs, err := w.svc.ListMessages(ctx, w.conversationID, w.opts.HistoryLimit)
	if !w.token.Valid() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	w.messages.Merge(msgs)
	w.changed(Change{Kind: Loaded})

	if n := len(msgs); n > 0 && senderOf(msgs[n-1]) != w.me.ID {
		w.markRead()
	}
	return nil
}

// Send shows the message immediately under a temporary id and creates it
// in the background. The temporary id is returned, or "" when nothing was
// sent.
func (w *Window) Send(ctx context.Context, content string, typ models.MessageType) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if typ == "" {
		typ = models.MessageText
	}
	if !typ.Valid() {
		w.fail(fmt.Errorf("unknown message type %q", typ))
		return ""
	}

	tempID := optimistic.NewTempID()
	pending := models.Message{
		ID:             tempID,
		ClientID:       tempID,
		Content:        content,
		Type:           typ,
		SenderID:       w.me.ID,
		Sender:         models.Sender{ID: w.me.ID, Name: w.me.DisplayName(), Avatar: w.me.Avatar},
		ConversationID: w.conversationID,
		CreatedAt:      w.opts.Now(),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ""
	}
	w.messages.Insert(pending)
	if typ == models.MessageText {
		w.draft = ""
	}
	w.wg.Add(1)
	w.mu.Unlock()
	w.changed(Change{Kind: Pending, TempID: tempID, Message: pending})

	go func() {
		defer w.wg.Done()
		w.deliver(ctx, pending)
	}()
	return tempID
}

func (w *Window) deliver(ctx context.Context, pending models.Message) {
	msg, err := w.svc.SendMessage(ctx, w.conversationID, models.NewMessage{
		Content:  pending.Content,
		Type:     pending.Type,
		ClientID: pending.ID,
	})
	if !w.token.Valid() {
		w.log.Debugf("window for %s closed, dropping result of %s", w.conversationID, pending.ID)
		return
	}
	if err != nil {
		w.messages.Rollback(pending.ID)
		if pending.Type == models.MessageText {
			w.mu.Lock()
			if w.draft == "" {
				w.draft = pending.Content
			}
			w.mu.Unlock()
		}
		w.changed(Change{Kind: RolledBack, TempID: pending.ID, Message: pending})
		w.fail(fmt.Errorf("send message: %w", err))
		return
	}
	w.messages.Confirm(pending.ID, *msg)
	w.changed(Change{Kind: Confirmed, TempID: pending.ID, Message: *msg})
}

// Receive merges a realtime delivery into the list. It reports whether the
// message was appended.
func (w *Window) Receive(msg models.Message) bool {
	if !w.token.Valid() {
		return false
	}
	if msg.ConversationID != "" && msg.ConversationID != w.conversationID {
		return false
	}

	appended := false
	w.messages.Do(func(tx *optimistic.Tx[models.Message]) {
		if isDuplicate(tx, msg) {
			return
		}
		tx.Append(msg)
		appended = true
	})
	if !appended {
		w.log.Debugf("dropping duplicate %s in %s", msg.ID, w.conversationID)
		return false
	}
	w.changed(Change{Kind: Received, Message: msg})

	if senderOf(msg) != w.me.ID {
		w.markRead()
	}
	return true
}

// isDuplicate matches an incoming message against the list. An echoed
// client id is matched against pending entries only; without one the
// content of pending entries is compared.
func isDuplicate(tx *optimistic.Tx[models.Message], msg models.Message) bool {
	if tx.Has(msg.ID) {
		return true
	}
	if msg.ClientID != "" {
		return tx.IsPending(msg.ClientID)
	}
	return tx.FindPending(func(p models.Message) bool {
		return p.Content == msg.Content
	})
}

func senderOf(m models.Message) string {
	if m.SenderID != "" {
		return m.SenderID
	}
	return m.Sender.ID
}

func (w *Window) markRead() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		if err := w.svc.MarkRead(context.Background(), w.conversationID); err != nil {
			w.log.Warnf("marking %s read: %v", w.conversationID, err)
		}
	}()
}

// Messages returns the visible list, oldest first.
func (w *Window) Messages() []models.Message {
	return w.messages.Values()
}

// Pending reports whether id is an unconfirmed local message.
func (w *Window) Pending(id string) bool {
	return w.messages.IsPending(id)
}

func (w *Window) Draft() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Window) SetDraft(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft = s
}

// Close stops realtime delivery and invalidates in-flight work. Requests
// already sent are not cancelled; their results are discarded.
func (w *Window) Close() {
	w.token.Cancel()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	sub.Unsubscribe()
}

// Wait blocks until background sends and read receipts finish.
func (w *Window) Wait() {
	w.wg.Wait()
}

func (w *Window) changed(c Change) {
	if w.opts.OnChange != nil {
		w.opts.OnChange(c)
	}
}

func (w *Window) fail(err error) {
	w.log.Warnf("%v", err)
	if w.opts.OnError != nil {
		w.opts.OnError(err)
	}
}
