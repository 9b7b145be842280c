package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geosync/internal/app"
	"github.com/mohammed-shakir/geosync/internal/core/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the GeoServer sync workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			logger := newLogger(cfg, "server")
			logger.Info("starting geosync",
				"addr", cfg.Addr,
				"version", Version,
				"geoserver", cfg.GeoServer.URL,
				"workspace", cfg.GeoServer.Workspace,
				"sync_enabled", cfg.Sync.Enabled)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, logger, buildInfo())
			if err != nil {
				return err
			}
			runErr := server.Run(ctx, cfg.Addr, logger, a.Handler)

			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.Timeout)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				logger.Warn("shutdown incomplete", "err", err)
			}
			if runErr != nil {
				return runErr
			}
			logger.Info("server stopped")
			return nil
		},
	}
	f := cmd.Flags()
	f.String("addr", v.GetString("addr"), "listen address")
	f.String("db-path", v.GetString("db_path"), "SQLite database file")
	f.String("redis-addr", v.GetString("redis_addr"), "Redis address for the response cache; empty disables it")
	f.Bool("sync-enabled", v.GetBool("sync_enabled"), "mirror writes into GeoServer")
	f.Int("sync-workers", v.GetInt("sync_workers"), "concurrent GeoServer transactions")
	f.Duration("sync-delay", v.GetDuration("sync_delay"), "wait after a local write before syncing it")
	f.String("kafka-brokers", v.GetString("kafka_brokers"), "comma separated Kafka brokers for change events")
	f.Bool("events-consume", v.GetBool("events_consume"), "invalidate the cache on change events from other instances")
	f.String("instance-id", v.GetString("instance_id"), "source id stamped on published change events; random when empty")
	_ = v.BindPFlag("addr", f.Lookup("addr"))
	_ = v.BindPFlag("db_path", f.Lookup("db-path"))
	_ = v.BindPFlag("redis_addr", f.Lookup("redis-addr"))
	_ = v.BindPFlag("sync_enabled", f.Lookup("sync-enabled"))
	_ = v.BindPFlag("sync_workers", f.Lookup("sync-workers"))
	_ = v.BindPFlag("sync_delay", f.Lookup("sync-delay"))
	_ = v.BindPFlag("kafka_brokers", f.Lookup("kafka-brokers"))
	_ = v.BindPFlag("events_consume", f.Lookup("events-consume"))
	_ = v.BindPFlag("instance_id", f.Lookup("instance-id"))
	return cmd
}
