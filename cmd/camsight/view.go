package main

import (
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yixinin/camsight/ice"
	"github.com/yixinin/camsight/peer"
	"github.com/yixinin/camsight/signal"
)

var viewURL string

var viewCmd = &cobra.Command{
	Use:   "view <room>",
	Short: "Create a room and receive the capture peer's video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		sig, err := signal.Dial(ctx, viewURL)
		if err != nil {
			return err
		}
		defer sig.Close()
		if err := sig.Create(ctx, args[0]); err != nil {
			return err
		}
		logrus.Infof("room %s created, waiting for capture peer", sig.Room())

		v := peer.NewViewer(ice.Config(cfg.IceServers), sig)
		v.OnTrack(func(track *webrtc.TrackRemote) {
			logrus.Infof("receiving %s ssrc %d", track.Codec().MimeType, track.SSRC())
		})
		return v.Run(ctx)
	},
}

func init() {
	viewCmd.Flags().StringVarP(&viewURL, "url", "u", "ws://localhost:8080/ws", "relay websocket url")
}
