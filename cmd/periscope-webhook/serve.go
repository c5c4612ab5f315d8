package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/periscope-mesh/periscope/internal/logging"
	"github.com/periscope-mesh/periscope/internal/webhook"
	"github.com/periscope-mesh/periscope/pkg/version"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		certFile   string
		keyFile    string
		logLevel   string
		logPretty  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mutating admission webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := webhook.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// Flags override config when set explicitly.
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("cert") {
				cfg.Server.CertFile = certFile
			}
			if cmd.Flags().Changed("key") {
				cfg.Server.KeyFile = keyFile
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("log-pretty") {
				cfg.Log.Pretty = logPretty
			}

			logger := logging.New(logging.Config{
				Level:  cfg.Log.Level,
				Pretty: cfg.Log.Pretty,
			})
			logger.Info().Str("version", version.String()).Msg("Starting periscope-webhook")

			server, err := webhook.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the webhook config file")
	cmd.Flags().StringVar(&host, "host", "", "Listen host")
	cmd.Flags().IntVar(&port, "port", 8443, "Listen port")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&logPretty, "log-pretty", false, "Human-readable log output")

	return cmd
}
