package config

import (
	"os"
	"time"

	"github.com/yixinin/camsight/stderr"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Detector   DetectorConfig  `yaml:"detector"`
	Engine     EngineConfig    `yaml:"engine"`
	Capture    CaptureConfig   `yaml:"capture"`
	IceServers []string        `yaml:"ice_servers"`
}

type ServerConfig struct {
	Addr           string    `yaml:"addr"`
	ReadLimit      int64     `yaml:"read_limit"` // 0 means unlimited
	AllowedOrigins []string  `yaml:"allowed_origins"`
	StaticDir      string    `yaml:"static_dir"` // web client served on unmatched paths
	TLS            TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	AutocertDomains []string `yaml:"autocert_domains"`
	CacheDir        string   `yaml:"cache_dir"`
}

func (c TLSConfig) Enabled() bool {
	return len(c.AutocertDomains) > 0
}

type TelemetryBackend string

const (
	TelemetryBadger TelemetryBackend = "badger"
	TelemetryFile   TelemetryBackend = "file"
)

type TelemetryConfig struct {
	Backend TelemetryBackend `yaml:"backend"`
	Path    string           `yaml:"path"`
}

type DetectorConfig struct {
	TargetFps       float64       `yaml:"target_fps"`
	MinFps          float64       `yaml:"min_fps"`
	FpsStep         float64       `yaml:"fps_step"`
	InputWidth      int           `yaml:"input_width"`
	InputHeight     int           `yaml:"input_height"`
	ScoreThreshold  float32       `yaml:"score_threshold"`
	InputName       string        `yaml:"input_name"`
	SummaryInterval time.Duration `yaml:"summary_interval"`
}

type EngineConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type CaptureSource string

const (
	CaptureCamera CaptureSource = "camera"
	CaptureFile   CaptureSource = "file"
	CaptureImages CaptureSource = "images"
)

type CaptureConfig struct {
	Source CaptureSource `yaml:"source"`
	Path   string        `yaml:"path"`
	Width  int           `yaml:"width"`
	Height int           `yaml:"height"`
	Fps    float64       `yaml:"fps"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Telemetry: TelemetryConfig{
			Backend: TelemetryBadger,
			Path:    "data/telemetry",
		},
		Detector: DetectorConfig{
			TargetFps:       12,
			MinFps:          6,
			FpsStep:         2,
			InputWidth:      320,
			InputHeight:     240,
			ScoreThreshold:  0.4,
			InputName:       "input",
			SummaryInterval: 2 * time.Second,
		},
		Engine: EngineConfig{
			Timeout: 5 * time.Second,
		},
		Capture: CaptureConfig{
			Source: CaptureCamera,
			Width:  640,
			Height: 480,
			Fps:    30,
		},
		IceServers: []string{"stun:stun.l.google.com:19302"},
	}
}

// LoadConfig reads filename over the defaults. An empty filename yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	var c = Default()
	if filename == "" {
		return c, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, stderr.Wrap(err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, stderr.Wrap(err)
	}
	c.fill()
	return c, nil
}

// fill restores defaults for values a file zeroed out.
func (c *Config) fill() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Telemetry.Backend == "" {
		c.Telemetry.Backend = def.Telemetry.Backend
	}
	if c.Telemetry.Path == "" {
		c.Telemetry.Path = def.Telemetry.Path
	}
	d := &c.Detector
	if d.TargetFps <= 0 {
		d.TargetFps = def.Detector.TargetFps
	}
	if d.MinFps <= 0 {
		d.MinFps = def.Detector.MinFps
	}
	if d.MinFps > d.TargetFps {
		d.MinFps = d.TargetFps
	}
	if d.FpsStep <= 0 {
		d.FpsStep = def.Detector.FpsStep
	}
	if d.InputWidth <= 0 || d.InputHeight <= 0 {
		d.InputWidth, d.InputHeight = def.Detector.InputWidth, def.Detector.InputHeight
	}
	if d.ScoreThreshold <= 0 {
		d.ScoreThreshold = def.Detector.ScoreThreshold
	}
	if d.InputName == "" {
		d.InputName = def.Detector.InputName
	}
	if d.SummaryInterval <= 0 {
		d.SummaryInterval = def.Detector.SummaryInterval
	}
	if c.Engine.Timeout <= 0 {
		c.Engine.Timeout = def.Engine.Timeout
	}
	if c.Capture.Source == "" {
		c.Capture.Source = def.Capture.Source
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		c.Capture.Width, c.Capture.Height = def.Capture.Width, def.Capture.Height
	}
	if c.Capture.Fps <= 0 {
		c.Capture.Fps = def.Capture.Fps
	}
	if c.IceServers == nil {
		c.IceServers = def.IceServers
	}
}
