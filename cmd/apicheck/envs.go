package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abel-apply/apicheck/internal/config"
)

func newEnvsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List the configured environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			active := config.EnvName(g.env)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tBASE URL\tTIMEOUT")
			for _, name := range cfg.ProfileNames() {
				p := cfg.Environments[name]
				mark := ""
				if name == active {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, name, p.BaseURL, p.Timeout)
			}
			return tw.Flush()
		},
	}
}
