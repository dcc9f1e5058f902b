package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/rubiojr/quill/pkg/chat"
	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/urfave/cli/v3"
)

// ChatCommand creates the chat command
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Open a conversation and chat in realtime",
		ArgsUsage: "<conversation-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "history",
				Usage: "Number of past messages to load",
				Value: chat.DefaultHistoryLimit,
			},
		},
		Action: withSession(runChat),
	}
}

func runChat(ctx context.Context, c *cli.Command, s *session) error {
	convID := c.Args().First()
	if convID == "" {
		return errors.New("conversation id required")
	}
	me, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	conv, err := s.client.GetConversation(ctx, convID)
	if err != nil {
		return fmt.Errorf("opening conversation: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(s.cfg.StateDir, "chat_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Log lines and incoming messages go through readline so the prompt
	// is redrawn below them.
	log.SetOutput(rl.Stderr())
	defer log.SetOutput(os.Stderr)
	s.stderr = rl.Stderr()

	var outMu sync.Mutex
	emit := func(line string) {
		outMu.Lock()
		defer outMu.Unlock()
		_, _ = fmt.Fprintln(rl.Stdout(), line)
	}

	mgr := s.realtimeManager()
	defer func() { _ = mgr.Close() }()
	sound := s.sound()
	defer sound.Close()

	var w *chat.Window
	w = chat.NewWindow(convID, *me, s.client, chat.Options{
		HistoryLimit: c.Int("history"),
		OnChange: func(ch chat.Change) {
			switch ch.Kind {
			case chat.Loaded:
				for _, m := range w.Messages() {
					emit(renderMessage(m, me.ID, w.Pending(m.ID)))
				}
			case chat.Pending:
				emit(renderMessage(ch.Message, me.ID, true))
			case chat.Received:
				emit(renderMessage(ch.Message, me.ID, false))
			}
		},
		OnError: func(err error) {
			emit(warnStyle.Render(s.printer.Sprintf(i18n.MsgSendFailed, err)))
		},
	})
	defer w.Close()

	emit(titleStyle.Render(conv.Title(me.ID)))
	if err := w.Load(ctx); err != nil {
		return err
	}
	w.Attach(mgr)

	inbox := chat.NewInbox(me.ID, chat.InboxOptions{
		Sound: sound,
		OnRefresh: func(r chat.Refresh) {
			if r.Reason == chat.ReasonConversation {
				emit(metaStyle.Render(s.printer.Sprintf(i18n.MsgNewConversation, r.ConversationID)))
				return
			}
			if r.ConversationID != convID {
				emit(metaStyle.Render(s.printer.Sprintf(i18n.MsgNewMessage, r.ConversationID)))
			}
		},
	})
	inbox.Attach(mgr)
	defer inbox.Close()

	emit(metaStyle.Render(s.printer.Sprintf(i18n.MsgChatHelp)))

	initialized := false
	for {
		line, err := rl.ReadlineWithDefault(w.Draft())
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil {
			break
		}

		// Audio may only start from user input.
		if !initialized {
			sound.Initialize()
			initialized = true
		}

		line = strings.TrimSpace(line)
		w.SetDraft("")
		switch {
		case line == "":
		case line == "/quit":
			w.Wait()
			return nil
		case strings.HasPrefix(line, "/image "):
			sendImage(ctx, s, w, strings.TrimSpace(strings.TrimPrefix(line, "/image ")), emit)
		default:
			w.Send(ctx, line, models.MessageText)
		}
	}
	w.Wait()
	return nil
}

func sendImage(ctx context.Context, s *session, w *chat.Window, path string, emit func(string)) {
	up, err := s.uploader()
	if err != nil {
		emit(warnStyle.Render(err.Error()))
		return
	}
	url, err := up.UploadFile(ctx, path)
	if err != nil {
		emit(warnStyle.Render(s.printer.Sprintf(i18n.MsgSendFailed, err)))
		return
	}
	w.Send(ctx, url, models.MessageImage)
}
