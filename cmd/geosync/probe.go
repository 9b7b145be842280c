package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geosync/internal/core/httpclient"
	"github.com/mohammed-shakir/geosync/internal/geoserver"
)

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that GeoServer is reachable with the configured credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			gs := geoserver.New(newLogger(cfg, "probe"), httpclient.NewOutbound(cfg.Sync.Timeout), cfg.GeoServer)
			res := gs.Probe(cmd.Context())

			if v.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Field", "Value"})
				tw.AppendRow(table.Row{"URL", res.GeoServerURL})
				tw.AppendRow(table.Row{"User", res.Username})
				tw.AppendRow(table.Row{"Workspace", res.Workspace})
				tw.AppendRow(table.Row{"Connected", res.Connected})
				if res.StatusCode != 0 {
					tw.AppendRow(table.Row{"Status", res.StatusText})
				}
				if names := res.WorkspaceNames(); len(names) > 0 {
					tw.AppendRow(table.Row{"Workspaces", strings.Join(names, ", ")})
				}
				if res.Error != "" {
					tw.AppendRow(table.Row{"Error", fmt.Sprintf("%s (%s)", res.Error, res.ErrorType)})
				}
				tw.Render()
			}
			if !res.Connected {
				return fmt.Errorf("geoserver at %s is not reachable", res.GeoServerURL)
			}
			return nil
		},
	}
}
