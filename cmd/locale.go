package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/quill/pkg/i18n"
	"github.com/urfave/cli/v3"
)

// LocaleCommand creates the locale command
func LocaleCommand() *cli.Command {
	return &cli.Command{
		Name:      "locale",
		Usage:     "Show or set the display language",
		ArgsUsage: "[locale]",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			want := c.Args().First()
			if want == "" {
				fmt.Fprintln(s.stdout, s.printer.Tag())
				return nil
			}
			tag := i18n.Match(want)
			if err := s.store.SetLocale(tag.String()); err != nil {
				return fmt.Errorf("saving locale: %w", err)
			}
			s.printer = i18n.NewPrinter(tag.String())
			fmt.Fprintln(s.stdout, s.printer.Sprintf(i18n.MsgLocaleSet, tag))
			return nil
		}),
	}
}
