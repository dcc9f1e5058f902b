// Package models holds the client-side copies of backend entities. They are
// transient and non-authoritative: the REST API owns every one of them.
package models

import "time"

type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageSystem MessageType = "SYSTEM"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageSystem:
		return true
	}
	return false
}

type ConversationType string

const (
	ConversationPrivate ConversationType = "PRIVATE"
	ConversationGroup   ConversationType = "GROUP"
)

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Sender is the compact author embedded in messages.
type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Message struct {
	ID             string      `json:"id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	SenderID       string      `json:"senderId"`
	Sender         Sender      `json:"sender"`
	ConversationID string      `json:"conversationId"`
	CreatedAt      time.Time   `json:"createdAt"`
	// ClientID echoes the temporary id the sender attached to the create
	// request. Empty when the backend does not echo it.
	ClientID string `json:"clientId,omitempty"`
}

// NewMessage is the body of a create-message request.
type NewMessage struct {
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId,omitempty"`
}

type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Conversation struct {
	ID          string           `json:"id"`
	Type        ConversationType `json:"type"`
	Name        string           `json:"name,omitempty"`
	Members     []Member         `json:"members"`
	LastMessage *Message         `json:"lastMessage,omitempty"`
	UnreadCount int              `json:"unreadCount,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt,omitempty"`
}

// Title names the conversation from the point of view of userID.
func (c Conversation) Title(userID string) string {
	if c.Name != "" {
		return c.Name
	}
	for _, m := range c.Members {
		if m.ID != userID {
			return m.Name
		}
	}
	return c.ID
}

type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CoverImage   string    `json:"coverImage,omitempty"`
	AuthorID     string    `json:"authorId"`
	Author       Sender    `json:"author"`
	Tags         []string  `json:"tags,omitempty"`
	CommentCount int       `json:"commentCount,omitempty"`
	LikeCount    int       `json:"likeCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

type NewPost struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CoverImage string   `json:"coverImage,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	Author    Sender    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Profile struct {
	User
	PostCount      int  `json:"postCount"`
	FollowerCount  int  `json:"followerCount"`
	FollowingCount int  `json:"followingCount"`
	IsFollowing    bool `json:"isFollowing,omitempty"`
}

type ProfileUpdate struct {
	Name   string `json:"name,omitempty"`
	Bio    string `json:"bio,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}
