package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abel-apply/apicheck/internal/demoapi"
)

func newDemoCmd(g *globals) *cobra.Command {
	var (
		addr     string
		secret   string
		tokenTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve the bundled demo API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			logger, err := g.logger(cfg)
			if err != nil {
				return err
			}

			api, err := demoapi.New(demoapi.Options{
				Secret:   secret,
				TokenTTL: tokenTTL,
				Logger:   &logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return api.Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC key for access tokens (random when empty)")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", time.Hour, "access token lifetime")
	return cmd
}
