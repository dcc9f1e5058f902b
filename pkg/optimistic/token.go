package optimistic

import "sync/atomic"

// Token is captured by asynchronous work started on behalf of a view.
// Completions check Valid before touching the view's state.
type Token struct {
	cancelled atomic.Bool
}

func NewToken() *Token { return &Token{} }

func (t *Token) Cancel() { t.cancelled.Store(true) }

func (t *Token) Valid() bool { return !t.cancelled.Load() }
