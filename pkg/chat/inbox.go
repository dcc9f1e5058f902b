package chat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/optimistic"
	"github.com/rubiojr/quill/pkg/realtime"
)

// Player plays the notification cue. notify.Sound implements it.
type Player interface {
	Play()
}

// ConversationLister refetches the conversation list after a refresh.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

const (
	ReasonMessage      = "message"
	ReasonConversation = "conversation"
)

// Refresh describes one bump of the inbox refresh counter.
type Refresh struct {
	Seq            uint64
	Reason         string
	ConversationID string
	Message        *models.Message
}

type InboxOptions struct {
	Sound Player
	// Lister, when set, is used to refetch conversations on every refresh.
	Lister    ConversationLister
	OnRefresh func(Refresh)
	// OnConversations receives each refetched conversation list.
	OnConversations func([]models.Conversation)
}

// Inbox follows the user's private channel.
type Inbox struct {
	userID string
	opts   InboxOptions
	seq    atomic.Uint64
	token  *optimistic.Token

	mu            sync.Mutex
	sub           *realtime.UserSubscription
	conversations []models.Conversation
	closed        bool

	wg  sync.WaitGroup
	log *log.Logger
}

func NewInbox(userID string, opts InboxOptions) *Inbox {
	return &Inbox{
		userID: userID,
		opts:   opts,
		token:  optimistic.NewToken(),
		log:    log.ForService("inbox"),
	}
}

func (in *Inbox) Attach(m *realtime.Manager) {
	sub := m.SubscribeUser(in.userID, realtime.UserHandlers{
		OnMessageNotification: in.onNotification,
		OnNewConversation:     in.onConversation,
	})

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	old := in.sub
	in.sub = sub
	in.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
}

func (in *Inbox) onNotification(n realtime.MessageNotification) {
	if !in.token.Valid() {
		return
	}
	if in.opts.Sound != nil {
		in.opts.Sound.Play()
	}
	in.bump(Refresh{Reason: ReasonMessage, ConversationID: n.ConversationID, Message: n.Message})
}

func (in *Inbox) onConversation(c realtime.NewConversation) {
	if !in.token.Valid() {
		return
	}
	in.bump(Refresh{Reason: ReasonConversation, ConversationID: c.ConversationID})
}

func (in *Inbox) bump(r Refresh) {
	r.Seq = in.seq.Add(1)
	if in.opts.OnRefresh != nil {
		in.opts.OnRefresh(r)
	}
	if in.opts.Lister != nil {
		in.refetch()
	}
}

// Refreshes returns the number of refreshes triggered so far.
func (in *Inbox) Refreshes() uint64 {
	return in.seq.Load()
}

// Reload fetches the conversation list now.
func (in *Inbox) Reload(ctx context.Context) ([]models.Conversation, error) {
	convs, err := in.opts.Lister.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	if !in.token.Valid() {
		return convs, nil
	}
	in.mu.Lock()
	in.conversations = convs
	in.mu.Unlock()
	if in.opts.OnConversations != nil {
		in.opts.OnConversations(convs)
	}
	return convs, nil
}

func (in *Inbox) refetch() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.wg.Add(1)
	in.mu.Unlock()

	go func() {
		defer in.wg.Done()
		if _, err := in.Reload(context.Background()); err != nil {
			in.log.Warnf("refreshing conversations: %v", err)
		}
	}()
}

// Conversations returns the last fetched list.
func (in *Inbox) Conversations() []models.Conversation {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]models.Conversation(nil), in.conversations...)
}

func (in *Inbox) Close() {
	in.token.Cancel()

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	sub := in.sub
	in.sub = nil
	in.mu.Unlock()

	sub.Unsubscribe()
}

func (in *Inbox) Wait() {
	in.wg.Wait()
}
