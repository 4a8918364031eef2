// apicheck runs Gherkin feature files against an HTTP JSON API.
//
// Usage:
//
//	apicheck run [paths...]       Run feature files (default: paths from apicheck.yaml)
//	apicheck envs                 List the configured environments
//	apicheck demo                 Serve the bundled demo API
//	apicheck version              Print the version
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abel-apply/apicheck/internal/config"
	"github.com/abel-apply/apicheck/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	env        string
	logLevel   string
	dotenv     []string
	stderr     io.Writer
}

// exitError carries a non-zero exit status without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "apicheck: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stderr: stderr}

	root := &cobra.Command{
		Use:           "apicheck",
		Short:         "Behaviour-driven tests for HTTP JSON APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", config.DefaultConfigFile, "config file")
	pf.StringVarP(&g.env, "env", "e", "", "environment profile (default $"+config.EnvVar+" or "+config.DefaultEnv+")")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error or off (default from config)")
	pf.StringSliceVar(&g.dotenv, "dotenv", nil, "dotenv files to load (default .env)")

	root.AddCommand(
		newRunCmd(g),
		newEnvsCmd(g),
		newDemoCmd(g),
		newVersionCmd(),
	)
	return root
}

// load reads the dotenv files and the config file, in that order, so the
// environment can select the profile.
func (g *globals) load() (*config.Config, error) {
	if err := config.LoadDotEnv(g.dotenv...); err != nil {
		return nil, err
	}
	return config.Load(g.configPath)
}

func (g *globals) logger(cfg *config.Config) (zerolog.Logger, error) {
	level := g.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	return logging.New(logging.Options{Level: level, Output: g.stderr, Service: "apicheck"})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apicheck version %s\n", version)
		},
	}
}
