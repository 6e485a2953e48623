package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/yixinin/camsight/stderr"
)

// FileSink appends one JSON document per line. Each line goes out in a single
// O_APPEND write, so several processes may share the file.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, stderr.Wrap(err)
	}
	return &FileSink{path: path, f: f}, nil
}

func (s *FileSink) Append(ctx context.Context, sample Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return stderr.Wrap(err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.f.Write(data)
	return stderr.Wrap(err)
}

func (s *FileSink) Scan(ctx context.Context, q Query) ([]Sample, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Sample{}, nil
	}
	if err != nil {
		return nil, stderr.Wrap(err)
	}
	defer f.Close()

	var out = make([]Sample, 0)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var sample Sample
		if err := json.Unmarshal(sc.Bytes(), &sample); err != nil {
			// torn or foreign line
			continue
		}
		if !q.match(sample) {
			continue
		}
		out = append(out, sample)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, stderr.Wrap(sc.Err())
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stderr.Wrap(s.f.Close())
}
