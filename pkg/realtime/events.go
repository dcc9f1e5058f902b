package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rubiojr/quill/pkg/models"
)

const (
	EventNewMessage          = "new-message"
	EventMessageNotification = "new-message-notification"
	EventNewConversation     = "new-conversation"
)

var (
	ErrUnknownEvent   = errors.New("realtime: unknown event")
	ErrInvalidPayload = errors.New("realtime: invalid payload")
)

// Event is one of NewMessage, MessageNotification or NewConversation.
type Event interface {
	EventName() string
}

// NewMessage is delivered on conversation-<id> channels.
type NewMessage struct {
	Message models.Message
}

// MessageNotification is delivered on user-<id> channels when a message
// arrives in any of the user's conversations.
type MessageNotification struct {
	ConversationID string
	Message        *models.Message
}

// NewConversation is delivered on user-<id> channels when the user is added
// to a conversation.
type NewConversation struct {
	ConversationID string
	Conversation   *models.Conversation
}

func (NewMessage) EventName() string          { return EventNewMessage }
func (MessageNotification) EventName() string { return EventMessageNotification }
func (NewConversation) EventName() string     { return EventNewConversation }

type notificationPayload struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message,omitempty"`
}

type conversationPayload struct {
	ConversationID string               `json:"conversationId"`
	Conversation   *models.Conversation `json:"conversation,omitempty"`
	ID             string               `json:"id"`
}

// Decode parses the payload of a named event.
func Decode(event string, data []byte) (Event, error) {
	switch event {
	case EventNewMessage:
		var m models.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event, err)
		}
		if m.ID == "" || m.ConversationID == "" {
			return nil, fmt.Errorf("%w: %s without id or conversationId", ErrInvalidPayload, event)
		}
		if m.Type == "" {
			m.Type = models.MessageText
		}
		if m.SenderID == "" {
			m.SenderID = m.Sender.ID
		}
		return NewMessage{Message: m}, nil

	case EventMessageNotification:
		var p notificationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event, err)
		}
		if p.ConversationID == "" && p.Message != nil {
			p.ConversationID = p.Message.ConversationID
		}
		if p.ConversationID == "" {
			return nil, fmt.Errorf("%w: %s without conversationId", ErrInvalidPayload, event)
		}
		return MessageNotification{ConversationID: p.ConversationID, Message: p.Message}, nil

	case EventNewConversation:
		var p conversationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event, err)
		}
		id := p.ConversationID
		if id == "" && p.Conversation != nil {
			id = p.Conversation.ID
		}
		if id == "" {
			id = p.ID
		}
		if id == "" {
			return nil, fmt.Errorf("%w: %s without conversation id", ErrInvalidPayload, event)
		}
		return NewConversation{ConversationID: id, Conversation: p.Conversation}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
}
