package main

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/urfave/cli/v2"

	"github.com/wanmail/world"
	"github.com/wanmail/world/config"
)

var textCommand = &cli.Command{
	Name:      "text",
	Usage:     "Print the visible text of the page or of the matching elements",
	ArgsUsage: "<path> [selector]",
	Action: func(c *cli.Context) error {
		return withPage(c, 1, func(b *world.Browser) error {
			text, err := b.PageText(c.Context, c.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, text)
			return nil
		})
	},
}

var clickCommand = &cli.Command{
	Name:      "click",
	Usage:     "Click the first element matching a selector",
	ArgsUsage: "<path> <selector>",
	Action: func(c *cli.Context) error {
		return withPage(c, 2, func(b *world.Browser) error {
			return b.ClickOn(c.Context, c.Args().Get(1))
		})
	},
}

var waitCommand = &cli.Command{
	Name:      "wait",
	Usage:     "Wait until an element containing the text is visible",
	ArgsUsage: "<path> <text>",
	Action: func(c *cli.Context) error {
		return withPage(c, 2, func(b *world.Browser) error {
			return b.WaitForText(c.Context, c.Args().Get(1))
		})
	},
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Print the number of matches and the text of each",
	ArgsUsage: "<path> <selector>",
	Action: func(c *cli.Context) error {
		return withPage(c, 2, func(b *world.Browser) error {
			elems, err := b.FindElements(c.Context, c.Args().Get(1), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%d matches\n", len(elems))
			for i, e := range elems {
				text, err := e.Text(c.Context)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%d: %s\n", i, text)
			}
			return nil
		})
	},
}

var logsCommand = &cli.Command{
	Name:      "logs",
	Usage:     "Print the browser console messages logged while the page loaded",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		return withPage(c, 1, func(b *world.Browser) error {
			logs, err := b.ConsoleLogs(c.Context)
			if err != nil {
				return err
			}
			for _, l := range logs {
				fmt.Fprintf(c.App.Writer, "%s %-7s %s\n", l.Time.Format("15:04:05.000"), l.Level, l.Message)
			}
			return nil
		})
	},
}

// loadConfig reads --config, or the defaults, and applies the global flags
// that were set on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("base-url") {
		cfg.World.BaseURL = c.String("base-url")
	}
	if c.IsSet("browser") {
		cfg.Capabilities.Browser = c.String("browser")
	}
	if c.IsSet("headless") {
		cfg.Capabilities.Headless = c.Bool("headless")
	}
	if c.IsSet("remote-url") {
		cfg.Capabilities.RemoteURL = c.String("remote-url")
	}
	if c.IsSet("driver-path") {
		cfg.Capabilities.DriverPath = c.String("driver-path")
	}
	if c.IsSet("timeout") {
		cfg.World.WaitTimeout = c.Duration("timeout")
	}
	if c.IsSet("strict") {
		cfg.World.StrictSelectors = c.Bool("strict")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withPage opens the page named by the first argument in a new session, runs
// fn and closes the session.
func withPage(c *cli.Context, nargs int, fn func(*world.Browser) error) (err error) {
	if c.NArg() < nargs {
		return fmt.Errorf("%s: expected %s", c.Command.Name, c.Command.ArgsUsage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sess, err := cfg.NewSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	b, err := world.New(c.Context, sess, cfg.World)
	if err != nil {
		return err
	}
	path := c.Args().First()
	glog.V(1).Infof("world: %s %s", c.Command.Name, strings.Join(c.Args().Slice(), " "))
	if err := b.OpenURL(c.Context, path); err != nil {
		return err
	}
	return fn(b)
}
