package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/quill/pkg/api"
	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/urfave/cli/v3"
)

// ConversationsCommand creates the conversations command
func ConversationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "conversations",
		Aliases: []string{"convs"},
		Usage:   "List and start conversations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your conversations",
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					me, err := s.currentUser(ctx)
					if err != nil {
						return err
					}
					convs, err := s.client.ListConversations(ctx)
					if err != nil {
						return fmt.Errorf("listing conversations: %w", err)
					}
					printConversations(s, convs, me.ID)
					return nil
				}),
			},
			{
				Name:      "create",
				Usage:     "Start a conversation with one or more users",
				ArgsUsage: "<user-id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Group name"},
				},
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					members := c.Args().Slice()
					if len(members) == 0 {
						return errors.New("at least one user id required")
					}
					me, err := s.currentUser(ctx)
					if err != nil {
						return err
					}
					typ := models.ConversationPrivate
					if len(members) > 1 || c.String("name") != "" {
						typ = models.ConversationGroup
					}
					conv, err := s.client.CreateConversation(ctx, api.NewConversation{
						Type:      typ,
						MemberIDs: members,
						Name:      c.String("name"),
					})
					if err != nil {
						return fmt.Errorf("creating conversation: %w", err)
					}
					fmt.Fprintln(s.stdout, renderConversation(*conv, me.ID))
					return nil
				}),
			},
		},
	}
}

func printConversations(s *session, convs []models.Conversation, myID string) {
	unread := 0
	for _, conv := range convs {
		unread += conv.UnreadCount
	}
	if unread > 0 {
		fmt.Fprintln(s.stdout, titleStyle.Render(s.printer.Sprintf(i18n.MsgNewMessages, unread)))
	}
	if len(convs) == 0 {
		fmt.Fprintln(s.stdout, metaStyle.Render("No conversations"))
	}
	for _, conv := range convs {
		fmt.Fprintln(s.stdout, renderConversation(conv, myID))
	}
}
