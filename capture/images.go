package capture

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/pipeline"
	"github.com/yixinin/camsight/stderr"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// Images replays the pictures of a directory in name order, looping.
type Images struct {
	cfg config.CaptureConfig
	seq sequence
}

func NewImages(cfg config.CaptureConfig) *Images {
	return &Images{cfg: cfg}
}

func (s *Images) Run(ctx context.Context, emit func(*pipeline.Frame)) error {
	imgs, err := s.load()
	if err != nil {
		return err
	}
	if len(imgs) == 0 {
		return stderr.Errorf("no images in %s", s.cfg.Path)
	}

	tick := time.NewTicker(interval(s.cfg.Fps))
	defer tick.Stop()
	for i := 0; ; i = (i + 1) % len(imgs) {
		emit(pipeline.NewFrame(imgs[i], s.seq.next(), time.Now(), nil))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (s *Images) load() ([]image.Image, error) {
	entries, err := os.ReadDir(s.cfg.Path)
	if err != nil {
		return nil, stderr.Wrap(err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	imgs := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := imaging.Open(filepath.Join(s.cfg.Path, name), imaging.AutoOrientation(true))
		if err != nil {
			logrus.Warnf("skip %s:%v", name, err)
			continue
		}
		if s.cfg.Width > 0 && s.cfg.Height > 0 {
			img = imaging.Fit(img, s.cfg.Width, s.cfg.Height, imaging.Linear)
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}
