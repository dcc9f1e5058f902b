package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rubiojr/quill/pkg/models"
)

type NewConversation struct {
	Type      models.ConversationType `json:"type"`
	MemberIDs []string                `json:"memberIds"`
	Name      string                  `json:"name,omitempty"`
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation returns the existing private conversation when one
// with the same member already exists.
func (c *Client) CreateConversation(ctx context.Context, nc NewConversation) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, nc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns up to limit messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []models.Message
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID string, m models.NewMessage) (*models.Message, error) {
	var out models.Message
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, nil, m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/read", nil, nil, nil)
}
