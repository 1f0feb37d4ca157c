package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/scraper"
)

const defaultLoginURL = "https://lookerstudio.google.com/"

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [url]",
		Short: "Sign in once in a visible browser and save the profile",
		Long: `Login opens a visible browser on the persistent profile directory so you can
sign in to the dashboard provider. Close the window or press Ctrl+C when done.
Later scrapes with --persistent (or "persistent": true over the API) reuse
the saved session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			initLogger(cfg.Log)

			target := defaultLoginURL
			if len(args) == 1 {
				target = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return scraper.Login(ctx, cfg.Browser, target, nil)
		},
	}
}
