package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rubiojr/quill/pkg/api"
	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/urfave/cli/v3"
)

// LoginCommand creates the login command
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and store the session token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email"},
			&cli.StringFlag{Name: "password", Usage: "Account password (prompted when omitted)"},
		},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			email, password, err := credentials(c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			resp, err := s.client.Login(ctx, api.Credentials{Email: email, Password: password})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := s.store.SetToken(resp.Token); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			fmt.Fprintln(s.stdout, s.printer.Sprintf(i18n.MsgLoggedInAs, resp.User.DisplayName()))
			return nil
		}),
	}
}

// RegisterCommand creates the register command
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and log in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
			&cli.StringFlag{Name: "username", Usage: "Handle", Required: true},
			&cli.StringFlag{Name: "email", Usage: "Account email"},
			&cli.StringFlag{Name: "password", Usage: "Account password (prompted when omitted)"},
		},
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			email, password, err := credentials(c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			resp, err := s.client.Register(ctx, api.Registration{
				Name:     c.String("name"),
				Username: c.String("username"),
				Email:    email,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			if err := s.store.SetToken(resp.Token); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			fmt.Fprintln(s.stdout, s.printer.Sprintf(i18n.MsgLoggedInAs, resp.User.DisplayName()))
			return nil
		}),
	}
}

// LogoutCommand creates the logout command
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session token",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			if err := s.store.ClearToken(); err != nil {
				return fmt.Errorf("clearing token: %w", err)
			}
			fmt.Fprintln(s.stdout, s.printer.Sprintf(i18n.MsgLoggedOut))
			return nil
		}),
	}
}

// WhoamiCommand creates the whoami command
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged in user",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			me, err := s.currentUser(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(s.stdout, renderUser(*me))
			token, _ := s.store.Token()
			if claims, err := api.ParseClaims(token); err == nil && !claims.ExpiresAt.IsZero() {
				fmt.Fprintln(s.stdout, metaStyle.Render("session expires "+claims.ExpiresAt.Local().Format("2006-01-02 15:04")))
			}
			return nil
		}),
	}
}

// credentials prompts for whatever was not given on the command line.
func credentials(email, password string) (string, string, error) {
	if email != "" && password != "" {
		return email, password, nil
	}
	rl, err := readline.New("")
	if err != nil {
		return "", "", fmt.Errorf("opening terminal: %w", err)
	}
	defer func() { _ = rl.Close() }()

	if email == "" {
		rl.SetPrompt("email: ")
		line, err := rl.Readline()
		if err != nil {
			return "", "", err
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		pw, err := rl.ReadPassword("password: ")
		if err != nil {
			return "", "", err
		}
		password = string(pw)
	}
	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password are required")
	}
	return email, password, nil
}
