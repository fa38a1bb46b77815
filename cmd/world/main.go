// Command world drives a browser session from the command line: it opens a
// page, runs one step against it and prints the result.
//
//	world --backend static --base-url http://localhost:8080 text / h1
//	world --headless click /login 'button:contains("Sign in")'
//	world wait /jobs 'Done!'
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// globalFlags are available to all commands.
var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML session configuration file",
		EnvVars: []string{"WORLD_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "Driver backend (remote, devtools, static)",
		EnvVars: []string{"WORLD_BACKEND"},
	},
	&cli.StringFlag{
		Name:    "base-url",
		Usage:   "URL that page paths are resolved against",
		EnvVars: []string{"WORLD_BASE_URL"},
	},
	&cli.StringFlag{
		Name:    "browser",
		Usage:   "Browser to start (chrome, firefox)",
		EnvVars: []string{"WORLD_BROWSER"},
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Run the browser without a window",
		EnvVars: []string{"WORLD_HEADLESS"},
	},
	&cli.StringFlag{
		Name:    "remote-url",
		Usage:   "Running WebDriver or DevTools endpoint",
		EnvVars: []string{"WORLD_REMOTE_URL"},
	},
	&cli.StringFlag{
		Name:    "driver-path",
		Usage:   "chromedriver or geckodriver binary to start",
		EnvVars: []string{"WORLD_DRIVER_PATH"},
	},
	&cli.DurationFlag{
		Name:    "timeout",
		Usage:   "How long waits poll before giving up",
		EnvVars: []string{"WORLD_TIMEOUT"},
	},
	&cli.BoolFlag{
		Name:    "strict",
		Usage:   "Fail on selectors no dialect accepts",
		EnvVars: []string{"WORLD_STRICT"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"WORLD_VERBOSE"},
	},
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "world",
		Usage:   "Run one browser step against a page",
		Version: Version,
		Description: `Selectors are tried as CSS, then as CSS with the :contains(), :eq(),
:first and :last extensions, then as XPath.

Examples:
  world text / h1
  world find /items 'li:contains("Done")'
  world --backend devtools --headless logs /`,
		Flags:     globalFlags,
		Writer:    out,
		ErrWriter: out,
		Before:    setupLogging,
		Commands: []*cli.Command{
			textCommand,
			clickCommand,
			waitCommand,
			findCommand,
			logsCommand,
		},
	}
}

// setupLogging sends glog output to stderr, at V(2) with --verbose.
func setupLogging(c *cli.Context) error {
	if err := flag.Set("logtostderr", "true"); err != nil {
		return err
	}
	if c.Bool("verbose") {
		return flag.Set("v", "2")
	}
	return nil
}

func main() {
	defer glog.Flush()
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		glog.Flush()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
