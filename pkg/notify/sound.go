// Package notify plays the audible cue for incoming messages.
//
// A Sound owns at most one AudioContext for the whole session. The context
// is created by Initialize, which the CLI calls in response to user input,
// and reused by every Play. Failures are logged and never returned.
package notify

import (
	"errors"
	"sync"

	"github.com/rubiojr/quill/pkg/log"
)

type ContextState int

const (
	Running ContextState = iota
	Suspended
	Closed
)

func (s ContextState) String() string {
	switch s {
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	}
	return "closed"
}

var ErrUnsupported = errors.New("notify: no audio output available")

// AudioContext is an output device able to play a WAV clip.
type AudioContext interface {
	State() ContextState
	Resume() error
	Play(wav []byte) error
	Close() error
}

// Backend creates the session's AudioContext.
type Backend func(wav []byte) (AudioContext, error)

type Sound struct {
	backend Backend
	wav     []byte

	mu          sync.Mutex
	ctx         AudioContext
	initialized bool
	log         *log.Logger
}

// New returns a Sound that creates its context through backend. A nil
// backend disables sound.
func New(backend Backend) *Sound {
	return &Sound{
		backend: backend,
		wav:     EncodeWAV(Tone(), SampleRate),
		log:     log.ForService("notify"),
	}
}

// Initialize creates the audio context. Only the first call has an effect.
func (s *Sound) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}
	s.initialized = true
	if s.backend == nil {
		s.log.Debugf("sound disabled")
		return
	}
	ctx, err := s.backend(s.wav)
	if err != nil {
		s.log.Warnf("audio unavailable: %v", err)
		return
	}
	s.ctx = ctx
}

// Play sounds the cue. A suspended context gets one resume attempt.
func (s *Sound) Play() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	switch ctx.State() {
	case Closed:
		return
	case Suspended:
		if err := ctx.Resume(); err != nil {
			s.log.Warnf("resuming audio: %v", err)
			return
		}
		if ctx.State() != Running {
			s.log.Debugf("audio still %s after resume", ctx.State())
			return
		}
	}
	if err := ctx.Play(s.wav); err != nil {
		s.log.Warnf("playing notification: %v", err)
	}
}

func (s *Sound) Close() {
	s.mu.Lock()
	ctx := s.ctx
	s.ctx = nil
	s.mu.Unlock()
	if ctx != nil {
		if err := ctx.Close(); err != nil {
			s.log.Debugf("closing audio: %v", err)
		}
	}
}
