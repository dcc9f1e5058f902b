package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rubiojr/quill/pkg/api"
	"github.com/rubiojr/quill/pkg/config"
	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/media"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/notify"
	"github.com/rubiojr/quill/pkg/realtime"
	"github.com/rubiojr/quill/pkg/store"
	"github.com/urfave/cli/v3"
)

var errNotLoggedIn = errors.New("not logged in, run `quill login` first")

// session bundles what every command needs: config, persisted state, the
// API client and a translated printer.
type session struct {
	configPath string
	cfg        *config.Config
	store      *store.Store
	client     *api.Client
	printer    *i18n.Printer
	stdout     io.Writer
	stderr     io.Writer
}

func openSession(c *cli.Command) (*session, error) {
	if c.Bool("debug") {
		log.SetGlobalDebug(true)
	}
	configPath := c.String("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}

	locale := cfg.Locale
	if saved, err := st.Locale(); err == nil && saved != "" {
		locale = saved
	}

	s := &session{
		configPath: configPath,
		cfg:        cfg,
		store:      st,
		printer:    i18n.NewPrinter(locale),
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}

	s.client, err = api.NewClient(cfg.APIURL, st, api.WithUnauthorizedHandler(func() {
		_, _ = fmt.Fprintln(s.stderr, warnStyle.Render(s.printer.Sprintf(i18n.MsgSessionExpired)))
	}))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	_ = s.store.Close()
}

// currentUser checks the stored token locally before asking the backend
// who it belongs to.
func (s *session) currentUser(ctx context.Context) (*models.User, error) {
	token, err := s.store.Token()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errNotLoggedIn
	}
	claims, err := api.ParseClaims(token)
	if err == nil && claims.Expired(time.Now()) {
		_ = s.store.ClearToken()
		return nil, errNotLoggedIn
	}
	me, err := s.client.Me(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, errNotLoggedIn
		}
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return me, nil
}

// realtimeManager builds the subscription manager for this process. Without
// an app key it hands out inert subscriptions.
func (s *session) realtimeManager() *realtime.Manager {
	var factory realtime.TransportFactory
	if s.cfg.RealtimeEnabled() {
		factory = realtime.NewPusherFactory(realtime.PusherConfig{
			AppKey:   s.cfg.Realtime.AppKey,
			Cluster:  s.cfg.Realtime.Cluster,
			Host:     s.cfg.Realtime.Host,
			Insecure: s.cfg.Realtime.Insecure,
		})
	}
	m := realtime.NewManager(factory, realtime.WithGraceWindow(s.cfg.Realtime.GraceWindow.Duration))
	if !m.Enabled() {
		_, _ = fmt.Fprintln(s.stderr, metaStyle.Render(s.printer.Sprintf(i18n.MsgRealtimeOff)))
	}
	return m
}

func (s *session) sound() *notify.Sound {
	return notify.New(notify.NewBackend(notify.Config{
		Enabled: s.cfg.Sound.Enabled,
		Player:  s.cfg.Sound.Player,
	}))
}

func (s *session) uploader() (*media.Uploader, error) {
	return media.NewUploader(media.Config{
		CloudName:    s.cfg.Media.CloudName,
		UploadPreset: s.cfg.Media.UploadPreset,
		UploadURL:    s.cfg.Media.UploadURL,
	}, nil)
}

// withSession runs fn with an open session.
func withSession(fn func(ctx context.Context, c *cli.Command, s *session) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, c, s)
	}
}
