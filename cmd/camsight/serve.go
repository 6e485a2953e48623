package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yixinin/camsight/relay"
	"github.com/yixinin/camsight/room"
	"github.com/yixinin/camsight/server"
	"github.com/yixinin/camsight/telemetry"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		store, err := telemetry.Open(cfg.Telemetry)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := signalContext()
		defer cancel()

		hub := relay.NewHub(room.NewRegistry(), store)
		if err := server.NewServer(cfg.Server, hub, store).Run(ctx); err != nil {
			return err
		}
		logrus.Infoln("relay stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address, overrides the config")
}
