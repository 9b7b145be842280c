package main

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geosync/internal/layers"
)

func layersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the published layers with their styles and OGC endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			reg, err := layers.Load(cfg.GeoServer, cfg.LayersFile)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				return enc.Encode(reg.All())
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Name", "Display", "Geometry", "Color", "Type name", "WMS"})
			for _, d := range reg.All() {
				tw.AppendRow(table.Row{d.Name, d.DisplayName, d.GeometryKind, d.Color, d.TypeName, d.WMSURL})
			}
			tw.Render()
			return nil
		},
	}
}
