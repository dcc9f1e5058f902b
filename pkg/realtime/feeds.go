package realtime

import (
	"sync/atomic"

	"github.com/rubiojr/quill/pkg/models"
)

func ConversationChannel(conversationID string) string { return "conversation-" + conversationID }

func UserChannel(userID string) string { return "user-" + userID }

// SubscribeConversation delivers new messages posted to a conversation.
func (m *Manager) SubscribeConversation(conversationID string, onMessage func(models.Message)) *Subscription {
	if conversationID == "" || onMessage == nil {
		return &Subscription{}
	}
	return m.Subscribe(ConversationChannel(conversationID), EventNewMessage, func(ev Event) {
		if nm, ok := ev.(NewMessage); ok {
			onMessage(nm.Message)
		}
	})
}

// UserHandlers are the callbacks for a user's private channel. Either may be
// nil.
type UserHandlers struct {
	OnMessageNotification func(MessageNotification)
	OnNewConversation     func(NewConversation)
}

// UserSubscription groups the two event subscriptions on a user channel.
type UserSubscription struct {
	handlers      atomic.Pointer[UserHandlers]
	notifications *Subscription
	conversations *Subscription
}

// SubscribeUser listens on user-<id> for message notifications and new
// conversations. Both events are bound so Update can add a callback later.
func (m *Manager) SubscribeUser(userID string, h UserHandlers) *UserSubscription {
	us := &UserSubscription{}
	us.handlers.Store(&h)
	if userID == "" {
		us.notifications, us.conversations = &Subscription{}, &Subscription{}
		return us
	}

	channel := UserChannel(userID)
	us.notifications = m.Subscribe(channel, EventMessageNotification, func(ev Event) {
		n, ok := ev.(MessageNotification)
		if !ok {
			return
		}
		if cb := us.handlers.Load().OnMessageNotification; cb != nil {
			cb(n)
		}
	})
	us.conversations = m.Subscribe(channel, EventNewConversation, func(ev Event) {
		c, ok := ev.(NewConversation)
		if !ok {
			return
		}
		if cb := us.handlers.Load().OnNewConversation; cb != nil {
			cb(c)
		}
	})
	return us
}

func (u *UserSubscription) Live() bool {
	return u != nil && u.notifications.Live()
}

// Update replaces both callbacks.
func (u *UserSubscription) Update(h UserHandlers) {
	if u == nil {
		return
	}
	u.handlers.Store(&h)
}

func (u *UserSubscription) Unsubscribe() {
	if u == nil {
		return
	}
	u.notifications.Unsubscribe()
	u.conversations.Unsubscribe()
}
