// Package feed holds view state for a post and its comments.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/optimistic"
)

type CommentService interface {
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, postID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type Options struct {
	OnChange func()
	OnError  func(error)
	Now      func() time.Time
}

// CommentThread is the comment list under one post. New comments are shown
// before the server accepts them and rolled back if it refuses.
type CommentThread struct {
	postID   string
	me       models.User
	svc      CommentService
	opts     Options
	comments *optimistic.List[models.Comment]
	token    *optimistic.Token

	mu     sync.Mutex
	draft  string
	closed bool

	wg  sync.WaitGroup
	log *log.Logger
}

func commentID(c models.Comment) string { return c.ID }

func NewCommentThread(postID string, me models.User, svc CommentService, opts Options) *CommentThread {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CommentThread{
		postID:   postID,
		me:       me,
		svc:      svc,
		opts:     opts,
		comments: optimistic.NewList(commentID),
		token:    optimistic.NewToken(),
		log:      log.ForService("feed"),
	}
}

func (t *CommentThread) Load(ctx context.Context) error {
	cs, err := t.svc.ListComments(ctx, t.postID)
	if !t.token.Valid() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	t.comments.Merge(cs)
	t.changed()
	return nil
}

// Add posts a comment. The comment is listed immediately under a temporary
// id, which is returned.
func (t *CommentThread) Add(ctx context.Context, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	tempID := optimistic.NewTempID()
	pending := models.Comment{
		ID:        tempID,
		PostID:    t.postID,
		Content:   body,
		AuthorID:  t.me.ID,
		Author:    models.Sender{ID: t.me.ID, Name: t.me.DisplayName(), Avatar: t.me.Avatar},
		CreatedAt: t.opts.Now(),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ""
	}
	t.comments.Insert(pending)
	t.draft = ""
	t.wg.Add(1)
	t.mu.Unlock()
	t.changed()

	go func() {
		defer t.wg.Done()
		c, err := t.svc.CreateComment(ctx, t.postID, body)
		if !t.token.Valid() {
			return
		}
		if err != nil {
			t.comments.Rollback(tempID)
			t.mu.Lock()
			if t.draft == "" {
				t.draft = body
			}
			t.mu.Unlock()
			t.changed()
			t.fail(fmt.Errorf("add comment: %w", err))
			return
		}
		t.comments.Confirm(tempID, *c)
		t.changed()
	}()
	return tempID
}

// Delete removes a confirmed comment once the server agrees.
func (t *CommentThread) Delete(ctx context.Context, id string) error {
	if optimistic.IsTemp(id) {
		return fmt.Errorf("comment %s is not saved yet", id)
	}
	if err := t.svc.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if t.token.Valid() && t.comments.Remove(id) {
		t.changed()
	}
	return nil
}

func (t *CommentThread) Comments() []models.Comment {
	return t.comments.Values()
}

func (t *CommentThread) Pending(id string) bool {
	return t.comments.IsPending(id)
}

func (t *CommentThread) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

func (t *CommentThread) SetDraft(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draft = s
}

func (t *CommentThread) Close() {
	t.token.Cancel()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *CommentThread) Wait() {
	t.wg.Wait()
}

func (t *CommentThread) changed() {
	if t.opts.OnChange != nil {
		t.opts.OnChange()
	}
}

func (t *CommentThread) fail(err error) {
	t.log.Warnf("%v", err)
	if t.opts.OnError != nil {
		t.opts.OnError(err)
	}
}
