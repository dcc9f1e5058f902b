package notify

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// Players tried, in order, when none is configured.
var Players = []string{"paplay", "aplay", "afplay"}

// BellPlayer selects the terminal bell.
const BellPlayer = "bell"

// Config selects the audio backend.
type Config struct {
	Enabled bool
	// Player is a command taking a WAV path, "bell", or empty to probe
	// Players.
	Player string
	// Bell receives the BEL byte when the bell is used. Defaults to stderr.
	Bell io.Writer
}

// NewBackend resolves cfg into a Backend. It returns nil when sound is
// disabled.
func NewBackend(cfg Config) Backend {
	if !cfg.Enabled {
		return nil
	}
	bell := cfg.Bell
	if bell == nil {
		bell = os.Stderr
	}
	return func(wav []byte) (AudioContext, error) {
		if cfg.Player == BellPlayer {
			return &bellContext{w: bell}, nil
		}
		candidates := Players
		if cfg.Player != "" {
			candidates = []string{cfg.Player}
		}
		for _, name := range candidates {
			path, err := exec.LookPath(name)
			if err != nil {
				continue
			}
			return newCommandContext(path, wav)
		}
		if cfg.Player != "" {
			return nil, fmt.Errorf("%w: player %q not found", ErrUnsupported, cfg.Player)
		}
		return &bellContext{w: bell}, nil
	}
}

// commandContext plays the clip through an external player. The clip is
// written once to a temporary file; the context counts as suspended when
// that file has disappeared.
type commandContext struct {
	player string
	wav    []byte

	mu     sync.Mutex
	path   string
	closed bool
}

func newCommandContext(player string, wav []byte) (*commandContext, error) {
	c := &commandContext{player: player, wav: wav}
	if err := c.writeClip(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *commandContext) writeClip() error {
	f, err := os.CreateTemp("", "quill-notify-*.wav")
	if err != nil {
		return fmt.Errorf("creating clip: %w", err)
	}
	if _, err := f.Write(c.wav); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("writing clip: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.path = f.Name()
	return nil
}

func (c *commandContext) State() ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Closed
	}
	if _, err := os.Stat(c.path); err != nil {
		return Suspended
	}
	return Running
}

func (c *commandContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("audio context closed")
	}
	return c.writeClip()
}

// Play starts the player and returns without waiting for it.
func (c *commandContext) Play([]byte) error {
	c.mu.Lock()
	path := c.path
	c.mu.Unlock()

	cmd := exec.Command(c.player, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", filepath.Base(c.player), err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func (c *commandContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return os.Remove(c.path)
}

type bellContext struct {
	w io.Writer
}

func (b *bellContext) State() ContextState { return Running }
func (b *bellContext) Resume() error       { return nil }
func (b *bellContext) Close() error        { return nil }

func (b *bellContext) Play([]byte) error {
	_, err := io.WriteString(b.w, "\a")
	return err
}
