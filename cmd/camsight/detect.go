package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yixinin/camsight/capture"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/detect"
	"github.com/yixinin/camsight/engine"
	"github.com/yixinin/camsight/pipeline"
	"github.com/yixinin/camsight/util"
)

var (
	detectSource string
	detectPath   string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the detection pipeline on a capture source",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if detectSource != "" {
			cfg.Capture.Source = config.CaptureSource(detectSource)
		}
		if detectPath != "" {
			cfg.Capture.Path = detectPath
		}

		src, err := capture.New(cfg.Capture)
		if err != nil {
			return err
		}
		proc := engine.NewProcess(cfg.Engine)
		defer proc.Close()

		var mu sync.Mutex
		enc := json.NewEncoder(os.Stdout)
		listener := pipeline.ListenerFuncs{
			Result: func(r pipeline.Result) {
				mu.Lock()
				defer mu.Unlock()
				if err := enc.Encode(r); err != nil {
					logrus.Errorf("write result:%v", err)
				}
			},
			Summary: func(s pipeline.Summary) {
				logrus.WithField("frames", s.Frames).
					Infof("fps %.1f, median %.1fms, p95 %.1fms", s.Fps, s.MedianLatencyMs, s.P95LatencyMs)
			},
		}

		slot := pipeline.NewSlot()
		sched := pipeline.NewScheduler(slot, detect.NewAdapter(proc, cfg.Detector), listener, pipeline.Options{
			TargetFps:       cfg.Detector.TargetFps,
			MinFps:          cfg.Detector.MinFps,
			FpsStep:         cfg.Detector.FpsStep,
			SummaryInterval: cfg.Detector.SummaryInterval,
		})

		ctx, cancel := signalContext()
		defer cancel()
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		var errc = make(chan error, 1)
		util.GoFunc(ctx, func(ctx context.Context) error {
			errc <- capture.Feed(ctx, src, slot)
			cancel()
			return nil
		})
		<-ctx.Done()

		st := sched.State()
		logrus.WithField("generation", st.Generation).Infof("stopping at %.1f fps, avg loop %.1fms", st.TargetFps, st.AvgLoopMs)
		select {
		case err := <-errc:
			return err
		default:
			return nil
		}
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectSource, "source", "s", "", "capture source: camera, file or images")
	detectCmd.Flags().StringVarP(&detectPath, "path", "p", "", "video file or image directory")
}
