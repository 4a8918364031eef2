package steps

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"

	"github.com/abel-apply/apicheck/internal/auth"
	"github.com/abel-apply/apicheck/internal/client"
	"github.com/abel-apply/apicheck/internal/config"
	"github.com/abel-apply/apicheck/internal/harness"
	"github.com/abel-apply/apicheck/internal/stash"
)

// BaseURLKey is the stash key pre-seeded with the active base URL.
const BaseURLKey = "baseUrl"

// Config configures a Suite.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Login      config.Login
	SchemaRoot string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Suite is one test run: a run-scoped harness plus the login bootstrap gate.
type Suite struct {
	run        *harness.Run
	boot       *auth.Bootstrapper
	schemaRoot string
	logger     zerolog.Logger
}

// NewSuite creates a Suite targeting cfg.BaseURL.
func NewSuite(cfg Config) *Suite {
	logger := cfg.Logger
	c := client.New(client.Options{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
		Logger:     &logger,
	})
	run := harness.NewRun(c, logger)
	if cfg.BaseURL != "" {
		run.Stash.Set(BaseURLKey, stash.String(cfg.BaseURL))
	}

	root := cfg.SchemaRoot
	if root == "" {
		root = "."
	}
	return &Suite{
		run:        run,
		boot:       auth.NewBootstrapper(cfg.Login, cfg.BaseURL),
		schemaRoot: root,
		logger:     logger,
	}
}

// Harness returns the run-scoped harness state.
func (s *Suite) Harness() *harness.Run { return s.run }

// InitializeTestSuite registers the suite hooks.
func (s *Suite) InitializeTestSuite(ctx *godog.TestSuiteContext) {
	var start time.Time
	ctx.BeforeSuite(func() {
		start = time.Now()
		s.logger.Info().Str("base_url", s.run.Client.BaseURL()).Msg("suite starting")
	})
	ctx.AfterSuite(func() {
		s.logger.Info().
			Dur("elapsed", time.Since(start)).
			Int("stashed", s.run.Stash.Len()).
			Msg("suite finished")
	})
}

// RunOptions selects what to run and how to report it.
type RunOptions struct {
	Paths          []string
	Tags           string
	Format         string // godog formatter, "progress" when empty
	CucumberReport string // also write a cucumber JSON report here when set
	Strict         bool
	StopOnFailure  bool
	NoColors       bool
	Output         io.Writer
}

// Exit statuses returned by Run, as defined by godog.
const (
	StatusPassed  = 0
	StatusFailed  = 1
	StatusOptions = 2
)

// Run executes the feature files and returns godog's exit status.
func (s *Suite) Run(opts RunOptions) (int, error) {
	format := opts.Format
	if format == "" {
		format = "progress"
	}
	if opts.CucumberReport != "" {
		if err := os.MkdirAll(filepath.Dir(opts.CucumberReport), 0o755); err != nil {
			return StatusOptions, fmt.Errorf("creating report directory: %w", err)
		}
		format += ",cucumber:" + opts.CucumberReport
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	status := godog.TestSuite{
		Name:                 "apicheck",
		ScenarioInitializer:  s.InitializeScenario,
		TestSuiteInitializer: s.InitializeTestSuite,
		Options: &godog.Options{
			Format:        format,
			Paths:         opts.Paths,
			Tags:          opts.Tags,
			Strict:        opts.Strict,
			StopOnFailure: opts.StopOnFailure,
			NoColors:      opts.NoColors,
			Output:        output,
			Concurrency:   1,
		},
	}.Run()
	return status, nil
}
