package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geosync/internal/core/config"
	"github.com/mohammed-shakir/geosync/internal/logger"
	"github.com/mohammed-shakir/geosync/internal/metrics"
)

// set by -ldflags at release time
var (
	Version   = "dev"
	Revision  = ""
	Branch    = ""
	BuildDate = ""
)

// v resolves every setting: flag, then environment, then default.
var v = config.New()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geosync",
		Short:         "Geo feature service that mirrors its writes into GeoServer",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addPersistentFlags(root)
	root.AddCommand(serveCmd(), probeCmd(), publishCmd(), layersCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String("geoserver-url", v.GetString("geoserver_url"), "GeoServer base URL")
	pf.String("geoserver-workspace", v.GetString("geoserver_workspace"), "GeoServer workspace")
	pf.String("geoserver-username", v.GetString("geoserver_username"), "GeoServer user")
	pf.String("log-level", v.GetString("log_level"), "debug, info, warn or error")
	pf.Bool("log-console", v.GetBool("log_console"), "human readable logs")
	pf.String("layers-file", v.GetString("layers_file"), "YAML file overriding layer names and styles")
	pf.Bool("json", false, "print JSON instead of tables")
	_ = v.BindPFlag("geoserver_url", pf.Lookup("geoserver-url"))
	_ = v.BindPFlag("geoserver_workspace", pf.Lookup("geoserver-workspace"))
	_ = v.BindPFlag("geoserver_username", pf.Lookup("geoserver-username"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log_console", pf.Lookup("log-console"))
	_ = v.BindPFlag("layers_file", pf.Lookup("layers-file"))
	_ = v.BindPFlag("json", pf.Lookup("json"))
}

func newLogger(cfg config.Config, component string) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "geosync",
		Component: component,
	}, os.Stderr)
	return logger.NewSlog(&zl)
}

func buildInfo() metrics.BuildInfo {
	return metrics.BuildInfo{Version: Version, Revision: Revision, Branch: Branch, BuildDate: BuildDate}
}

func loadConfig() config.Config { return config.Load(v) }
