package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rubiojr/quill/pkg/chat"
	"github.com/rubiojr/quill/pkg/config"
	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/notify"
	"github.com/urfave/cli/v3"
)

// WatchCommand creates the watch command.
//
// It follows the user's private channel and prints a line for every new
// message or conversation, playing the notification cue for messages. The
// conversation list is refetched on every notification and, with --poll,
// on a timer. Sound settings are reloaded when the config file changes.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Tail message notifications",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "poll",
				Usage: "Also refetch conversations at this interval (0 disables; defaults to 30s without realtime)",
			},
			&cli.BoolFlag{
				Name:  "no-reload",
				Usage: "Do not reload sound settings when the config file changes",
			},
		},
		Action: withSession(runWatch),
	}
}

// swappableSound lets the config watcher replace the sound backend while
// the inbox keeps a single Player.
type swappableSound struct {
	cur atomic.Pointer[notify.Sound]
}

func (s *swappableSound) Play() {
	if snd := s.cur.Load(); snd != nil {
		snd.Play()
	}
}

func (s *swappableSound) swap(next *notify.Sound) {
	if old := s.cur.Swap(next); old != nil {
		old.Close()
	}
}

func runWatch(ctx context.Context, c *cli.Command, s *session) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := s.currentUser(ctx)
	if err != nil {
		return err
	}

	mgr := s.realtimeManager()
	defer func() { _ = mgr.Close() }()

	// Starting watch is the user action that unlocks audio.
	sound := &swappableSound{}
	first := s.sound()
	first.Initialize()
	sound.swap(first)
	defer sound.swap(nil)

	inbox := chat.NewInbox(me.ID, chat.InboxOptions{
		Sound:  sound,
		Lister: s.client,
		OnRefresh: func(r chat.Refresh) {
			stamp := metaStyle.Render(time.Now().Format("15:04:05"))
			switch r.Reason {
			case chat.ReasonConversation:
				fmt.Fprintf(s.stdout, "%s %s\n", stamp, s.printer.Sprintf(i18n.MsgNewConversation, r.ConversationID))
			default:
				line := s.printer.Sprintf(i18n.MsgNewMessage, r.ConversationID)
				if r.Message != nil {
					line += ": " + renderMessage(*r.Message, me.ID, false)
				}
				fmt.Fprintf(s.stdout, "%s %s\n", stamp, line)
			}
		},
		OnConversations: func(convs []models.Conversation) {
			unread := 0
			for _, conv := range convs {
				unread += conv.UnreadCount
			}
			if unread > 0 {
				fmt.Fprintln(s.stdout, metaStyle.Render(s.printer.Sprintf(i18n.MsgNewMessages, unread)))
			}
		},
	})
	inbox.Attach(mgr)
	defer func() {
		inbox.Close()
		inbox.Wait()
	}()

	convs, err := inbox.Reload(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	printConversations(s, convs, me.ID)

	if !c.Bool("no-reload") {
		go func() {
			err := config.Watch(ctx, s.configPath, func(cfg *config.Config) {
				next := notify.New(notify.NewBackend(notify.Config{
					Enabled: cfg.Sound.Enabled,
					Player:  cfg.Sound.Player,
				}))
				next.Initialize()
				sound.swap(next)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.ForService("watch").Debugf("config watch stopped: %v", err)
			}
		}()
	}

	poll := c.Duration("poll")
	if poll == 0 && !mgr.Enabled() {
		poll = 30 * time.Second
	}
	if poll <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := inbox.Reload(ctx); err != nil && ctx.Err() == nil {
				log.ForService("watch").Warnf("polling conversations: %v", err)
			}
		}
	}
}
