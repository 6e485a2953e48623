package telemetry

import (
	"os"
	"path/filepath"

	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/stderr"
)

// Open returns the store selected by cfg.
func Open(cfg config.TelemetryConfig) (Store, error) {
	switch cfg.Backend {
	case config.TelemetryBadger:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, stderr.Wrap(err)
		}
		return OpenBadger(cfg.Path)
	case config.TelemetryFile:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, stderr.Wrap(err)
			}
		}
		return OpenFile(cfg.Path)
	}
	return nil, stderr.Errorf("unknown telemetry backend %q", cfg.Backend)
}
