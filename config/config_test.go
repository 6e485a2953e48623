package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadConfigDefaults(t *testing.T) {
	is := is.New(t)
	c, err := LoadConfig("")
	is.NoErr(err)
	is.Equal(c.Detector.TargetFps, 12.0)
	is.Equal(c.Detector.MinFps, 6.0)
	is.Equal(c.Detector.ScoreThreshold, float32(0.4))
	is.Equal(c.Telemetry.Backend, TelemetryBadger)
}

func TestLoadConfigFile(t *testing.T) {
	is := is.New(t)
	filename := filepath.Join(t.TempDir(), "camsight.yaml")
	data := []byte(`
server:
  addr: ":9090"
telemetry:
  backend: file
  path: metrics.jsonl
detector:
  target_fps: 20
  min_fps: 30
  summary_interval: 500ms
engine:
  command: ./worker.sh
  args: ["--model", "ssd.onnx"]
`)
	is.NoErr(os.WriteFile(filename, data, 0o644))

	c, err := LoadConfig(filename)
	is.NoErr(err)
	is.Equal(c.Server.Addr, ":9090")
	is.Equal(c.Telemetry.Backend, TelemetryFile)
	is.Equal(c.Detector.TargetFps, 20.0)
	is.Equal(c.Detector.MinFps, 20.0) // clamped to target
	is.Equal(c.Detector.FpsStep, 2.0)
	is.Equal(c.Detector.SummaryInterval, 500*time.Millisecond)
	is.Equal(c.Engine.Args, []string{"--model", "ssd.onnx"})
	is.Equal(c.Detector.InputWidth, 320)
}

func TestLoadConfigMissing(t *testing.T) {
	is := is.New(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	is.True(err != nil)
}
