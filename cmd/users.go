package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/rubiojr/quill/pkg/models"
	"github.com/urfave/cli/v3"
)

// FollowCommand creates the follow command
func FollowCommand() *cli.Command {
	return &cli.Command{
		Name:      "follow",
		Usage:     "Follow a user",
		ArgsUsage: "<user-id>",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("user id required")
			}
			if err := s.client.Follow(ctx, id); err != nil {
				return fmt.Errorf("following %s: %w", id, err)
			}
			fmt.Fprintf(s.stdout, "Following %s\n", id)
			return nil
		}),
	}
}

// UnfollowCommand creates the unfollow command
func UnfollowCommand() *cli.Command {
	return &cli.Command{
		Name:      "unfollow",
		Usage:     "Stop following a user",
		ArgsUsage: "<user-id>",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("user id required")
			}
			if err := s.client.Unfollow(ctx, id); err != nil {
				return fmt.Errorf("unfollowing %s: %w", id, err)
			}
			fmt.Fprintf(s.stdout, "Unfollowed %s\n", id)
			return nil
		}),
	}
}

// UsersCommand creates the users command
func UsersCommand() *cli.Command {
	return &cli.Command{
		Name:      "users",
		Usage:     "Search users by name or handle",
		ArgsUsage: "<query>",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			q := c.Args().First()
			if q == "" {
				return errors.New("search query required")
			}
			users, err := s.client.SearchUsers(ctx, q)
			if err != nil {
				return fmt.Errorf("searching users: %w", err)
			}
			for _, u := range users {
				fmt.Fprintln(s.stdout, renderUser(u))
			}
			return nil
		}),
	}
}

// FollowersCommand creates the followers command
func FollowersCommand() *cli.Command {
	return &cli.Command{
		Name:      "followers",
		Usage:     "List followers of a user (yourself by default)",
		ArgsUsage: "[user-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "following", Usage: "List who the user follows instead"},
		},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			id := c.Args().First()
			if id == "" {
				me, err := s.currentUser(ctx)
				if err != nil {
					return err
				}
				id = me.ID
			}
			var (
				users []models.User
				err   error
			)
			if c.Bool("following") {
				users, err = s.client.Following(ctx, id)
			} else {
				users, err = s.client.Followers(ctx, id)
			}
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}
			if !c.Bool("following") {
				fmt.Fprintln(s.stdout, titleStyle.Render(s.printer.Sprintf(i18n.MsgFollowers, len(users))))
			}
			for _, u := range users {
				fmt.Fprintln(s.stdout, renderUser(u))
			}
			return nil
		}),
	}
}

// ProfileCommand creates the profile command
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or update profiles",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a profile (yours by default)",
				ArgsUsage: "[user-id]",
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					id := c.Args().First()
					if id == "" {
						me, err := s.currentUser(ctx)
						if err != nil {
							return err
						}
						id = me.ID
					}
					p, err := s.client.GetProfile(ctx, id)
					if err != nil {
						return fmt.Errorf("fetching profile: %w", err)
					}
					fmt.Fprintln(s.stdout, renderUser(p.User))
					if p.Bio != "" {
						fmt.Fprintln(s.stdout, p.Bio)
					}
					fmt.Fprintln(s.stdout, metaStyle.Render(fmt.Sprintf("%d posts · %s · %d following",
						p.PostCount, s.printer.Sprintf(i18n.MsgFollowers, p.FollowerCount), p.FollowingCount)))
					return nil
				}),
			},
			{
				Name:  "update",
				Usage: "Update your profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "bio"},
					&cli.StringFlag{Name: "avatar", Usage: "Avatar URL or a local image to upload"},
				},
				Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
					avatar := c.String("avatar")
					if avatar != "" && !isURL(avatar) {
						up, err := s.uploader()
						if err != nil {
							return fmt.Errorf("uploading avatar: %w", err)
						}
						if avatar, err = up.UploadFile(ctx, avatar); err != nil {
							return err
						}
					}
					u, err := s.client.UpdateProfile(ctx, models.ProfileUpdate{
						Name:   c.String("name"),
						Bio:    c.String("bio"),
						Avatar: avatar,
					})
					if err != nil {
						return fmt.Errorf("updating profile: %w", err)
					}
					fmt.Fprintln(s.stdout, renderUser(*u))
					return nil
				}),
			},
		},
	}
}
