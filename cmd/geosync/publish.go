package main

import (
	"encoding/json"
	"errors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geosync/internal/core/httpclient"
	"github.com/mohammed-shakir/geosync/internal/geoserver"
	"github.com/mohammed-shakir/geosync/internal/layers"
)

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Create the workspace and datastore and publish every layer in GeoServer",
		Long: `Publish creates the workspace, registers the PostGIS datastore and publishes
the forests, roads and factories feature types. Resources that already exist
are left alone. A failing step is reported and the remaining steps still run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			logger := newLogger(cfg, "publish")
			reg, err := layers.Load(cfg.GeoServer, cfg.LayersFile)
			if err != nil {
				return err
			}
			gs := geoserver.New(logger, httpclient.NewOutbound(cfg.Sync.Timeout), cfg.GeoServer)

			fts := make([]geoserver.FeatureType, 0, len(reg.All()))
			for _, d := range reg.All() {
				fts = append(fts, geoserver.FeatureType{Name: d.Name, Title: d.DisplayName})
			}
			report := gs.Publish(cmd.Context(), cfg.Datastore, fts)

			if v.GetBool("json") {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(report); err != nil {
					return err
				}
			} else {
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Step", "Target", "Status", "Result"})
				for _, s := range report.Steps {
					result := "ok"
					switch {
					case s.Error != "":
						result = s.Error
					case s.Existed:
						result = "already exists"
					}
					tw.AppendRow(table.Row{s.Step, s.Target, s.StatusCode, result})
				}
				tw.Render()
			}
			if !report.OK() {
				return errors.New("one or more publish steps failed")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("datastore-host", v.GetString("datastore_host"), "PostGIS host as seen from GeoServer")
	f.String("datastore-database", v.GetString("datastore_database"), "PostGIS database")
	_ = v.BindPFlag("datastore_host", f.Lookup("datastore-host"))
	_ = v.BindPFlag("datastore_database", f.Lookup("datastore-database"))
	return cmd
}
