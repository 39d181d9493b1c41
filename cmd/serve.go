package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/monitoring"
	"github.com/sells-group/contentmix/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		srv := server.New(env.Executor, env.Analyzer, env.Store, env.Metrics, server.Options{
			CORSOrigins: cfg.Server.CORSOrigins,
			MaxBody:     int64(cfg.Server.MaxUploadMBytes) << 20,
		})

		port := server.ResolvePort(servePort, cfg.Server.Port)
		return server.Start(ctx, srv.Handler(), port, time.Duration(cfg.Server.ShutdownSecs)*time.Second)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
