package main

import (
	"github.com/spf13/cobra"

	"github.com/abel-apply/apicheck/internal/steps"
)

type runFlags struct {
	tags          string
	format        string
	report        string
	noReport      bool
	strict        bool
	stopOnFailure bool
	noColors      bool
}

func newRunCmd(g *globals) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run feature files against the selected environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			name, profile, err := cfg.Select(g.env)
			if err != nil {
				return err
			}
			logger, err := g.logger(cfg)
			if err != nil {
				return err
			}
			logger.Info().Str("env", name).Str("base_url", profile.BaseURL).Msg("selected environment")

			paths := args
			if len(paths) == 0 {
				paths = cfg.Features
			}
			format := f.format
			if format == "" {
				format = cfg.Report.Format
			}
			report := f.report
			if report == "" {
				report = cfg.Report.Cucumber
			}
			if f.noReport {
				report = ""
			}

			suite := steps.NewSuite(steps.Config{
				BaseURL:    profile.BaseURL,
				Timeout:    profile.Timeout,
				Login:      cfg.Login,
				SchemaRoot: cfg.SchemaRoot,
				Logger:     logger,
			})
			status, err := suite.Run(steps.RunOptions{
				Paths:          paths,
				Tags:           f.tags,
				Format:         format,
				CucumberReport: report,
				Strict:         f.strict,
				StopOnFailure:  f.stopOnFailure,
				NoColors:       f.noColors,
				Output:         cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if status != steps.StatusPassed {
				return &exitError{code: status}
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.tags, "tags", "t", "", `tag expression, e.g. "@Login && ~@slow"`)
	fl.StringVarP(&f.format, "format", "f", "", "godog formatter: progress, pretty, junit, cucumber (default from config)")
	fl.StringVar(&f.report, "report", "", "cucumber JSON report path (default from config)")
	fl.BoolVar(&f.noReport, "no-report", false, "do not write the cucumber JSON report")
	fl.BoolVar(&f.strict, "strict", true, "fail on undefined or pending steps")
	fl.BoolVar(&f.stopOnFailure, "stop-on-failure", false, "stop at the first failing scenario")
	fl.BoolVar(&f.noColors, "no-colors", false, "disable colored output")
	return cmd
}
