package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rubiojr/quill/pkg/realtime"
	"github.com/rubiojr/quill/pkg/version"
	"github.com/urfave/cli/v3"
)

func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the quill release",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Also print the user agent, realtime protocol and Go runtime",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			printVersion(os.Stdout, c.Bool("verbose"))
			return nil
		},
	}
}

func printVersion(w io.Writer, verbose bool) {
	fmt.Fprintln(w, version.BuildVersion())
	if !verbose {
		return
	}
	fmt.Fprintf(w, "  user agent:        %s\n", version.UserAgent())
	fmt.Fprintf(w, "  realtime protocol: pusher %s\n", realtime.PusherProtocol)
	fmt.Fprintf(w, "  go runtime:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
