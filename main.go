package main

import (
	"context"
	"log"
	"os"

	"github.com/rubiojr/quill/cmd"
	"github.com/rubiojr/quill/pkg/config"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "quill",
		Usage: "Terminal client for posts, follows and realtime chat",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.LoginCommand(),
			cmd.RegisterCommand(),
			cmd.LogoutCommand(),
			cmd.WhoamiCommand(),
			cmd.PostsCommand(),
			cmd.CommentCommand(),
			cmd.UsersCommand(),
			cmd.FollowCommand(),
			cmd.UnfollowCommand(),
			cmd.FollowersCommand(),
			cmd.ProfileCommand(),
			cmd.ConversationsCommand(),
			cmd.ChatCommand(),
			cmd.WatchCommand(),
			cmd.UploadCommand(),
			cmd.LocaleCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
