package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/yixinin/camsight/telemetry"
)

var (
	telemetryRoom  string
	telemetryLimit int
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Print stored session quality samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := telemetry.Open(cfg.Telemetry)
		if err != nil {
			return err
		}
		defer store.Close()

		samples, err := store.Scan(context.Background(), telemetry.Query{Room: telemetryRoom, Limit: telemetryLimit})
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Time", "Room", "Role", "Bitrate (kbps)", "Fps", "Latency (ms)"})
		for _, s := range samples {
			t.AppendRow(table.Row{
				s.Timestamp.Local().Format(time.DateTime),
				s.Room,
				s.Role,
				fmt.Sprintf("%.0f", s.Bitrate),
				fmt.Sprintf("%.1f", s.Fps),
				fmt.Sprintf("%.0f", s.LatencyMs),
			})
		}
		t.AppendFooter(table.Row{"", "", "", "", "Samples", len(samples)})
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	telemetryCmd.Flags().StringVarP(&telemetryRoom, "room", "r", "", "only samples of this room")
	telemetryCmd.Flags().IntVarP(&telemetryLimit, "limit", "n", 0, "max samples, 0 for all")
}
