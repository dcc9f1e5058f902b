// Package optimistic keeps locally inserted entries alongside server
// confirmed ones until the server answers.
//
// An entry is inserted under a temporary id, rendered straight away, and
// then either confirmed (replaced in place by the server copy) or rolled
// back (removed).
package optimistic

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TempPrefix marks ids that were minted locally.
const TempPrefix = "temp-"

// NewTempID returns a time-ordered id that is unique for the session.
func NewTempID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return TempPrefix + uuid.NewString()
	}
	return TempPrefix + id.String()
}

func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

type entry[T any] struct {
	value   T
	pending bool
}

// List is an ordered collection of T keyed by the id returned from idOf.
// It is safe for concurrent use.
type List[T any] struct {
	mu      sync.RWMutex
	idOf    func(T) string
	entries []entry[T]
}

func NewList[T any](idOf func(T) string) *List[T] {
	return &List[T]{idOf: idOf}
}

func (l *List[T]) indexLocked(id string) int {
	for i := range l.entries {
		if l.idOf(l.entries[i].value) == id {
			return i
		}
	}
	return -1
}

// Insert appends v as a pending entry.
func (l *List[T]) Insert(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry[T]{value: v, pending: true})
}

// Append adds a confirmed entry. It returns false when an entry with the
// same id is already present.
func (l *List[T]) Append(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexLocked(l.idOf(v)) >= 0 {
		return false
	}
	l.entries = append(l.entries, entry[T]{value: v})
	return true
}

// Confirm replaces the pending entry tempID with v, keeping its position.
// If v's id is already in the list (delivered in the meantime) the pending
// entry is dropped instead. It returns false when tempID is gone.
func (l *List[T]) Confirm(tempID string, v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(tempID)
	if i < 0 {
		return false
	}
	if id := l.idOf(v); id != tempID && l.indexLocked(id) >= 0 {
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
		return true
	}
	l.entries[i] = entry[T]{value: v}
	return true
}

// Rollback removes the pending entry tempID.
func (l *List[T]) Rollback(tempID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(tempID)
	if i < 0 || !l.entries[i].pending {
		return false
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return true
}

// Remove drops the entry id, pending or not.
func (l *List[T]) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return false
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return true
}

func (l *List[T]) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexLocked(id) >= 0
}

func (l *List[T]) IsPending(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexLocked(id)
	return i >= 0 && l.entries[i].pending
}

// FindPending returns the first pending entry matching pred.
func (l *List[T]) FindPending(pred func(T) bool) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.pending && pred(e.value) {
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

// Do runs fn with the list locked, so a check and an insert can happen as
// one step. fn must only use the Tx it is given.
func (l *List[T]) Do(fn func(tx *Tx[T])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&Tx[T]{l: l})
}

// Tx is the locked view passed to Do.
type Tx[T any] struct {
	l *List[T]
}

func (tx *Tx[T]) Has(id string) bool { return tx.l.indexLocked(id) >= 0 }

func (tx *Tx[T]) IsPending(id string) bool {
	i := tx.l.indexLocked(id)
	return i >= 0 && tx.l.entries[i].pending
}

func (tx *Tx[T]) FindPending(pred func(T) bool) bool {
	for _, e := range tx.l.entries {
		if e.pending && pred(e.value) {
			return true
		}
	}
	return false
}

func (tx *Tx[T]) Append(v T) {
	tx.l.entries = append(tx.l.entries, entry[T]{value: v})
}

// Values returns a snapshot in display order.
func (l *List[T]) Values() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.value
	}
	return out
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Merge installs a freshly loaded page vs ahead of everything already held.
// Confirmed entries missing from vs are kept after it, then pending ones.
func (l *List[T]) Merge(vs []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]bool, len(vs))
	next := make([]entry[T], 0, len(vs)+len(l.entries))
	for _, v := range vs {
		id := l.idOf(v)
		if seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, entry[T]{value: v})
	}
	for _, e := range l.entries {
		if !e.pending && !seen[l.idOf(e.value)] {
			next = append(next, e)
		}
	}
	for _, e := range l.entries {
		if e.pending {
			next = append(next, e)
		}
	}
	l.entries = next
}
