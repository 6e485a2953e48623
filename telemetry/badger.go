package telemetry

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/yixinin/camsight/db"
	"github.com/yixinin/camsight/stderr"
)

const (
	samplePrefix = "telemetry/sample/"
	sequenceKey  = "telemetry/seq"
)

// BadgerSink keys every sample by a stored sequence, so key order is
// arrival order, also across restarts.
type BadgerSink struct {
	storage *db.Storage
	seq     *badger.Sequence
}

func OpenBadger(dir string) (*BadgerSink, error) {
	storage, err := db.Open(dir)
	if err != nil {
		return nil, err
	}
	seq, err := storage.Sequence(sequenceKey)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return &BadgerSink{storage: storage, seq: seq}, nil
}

func sampleKey(n uint64) string {
	return fmt.Sprintf("%s%020d", samplePrefix, n)
}

func (b *BadgerSink) Append(ctx context.Context, s Sample) error {
	n, err := b.seq.Next()
	if err != nil {
		return stderr.Wrap(err)
	}
	return db.Set(ctx, b.storage, sampleKey(n), s, 0)
}

func (b *BadgerSink) Scan(ctx context.Context, q Query) ([]Sample, error) {
	return db.Scan(ctx, b.storage, samplePrefix, q.Limit, q.match)
}

func (b *BadgerSink) Close() error {
	if err := b.seq.Release(); err != nil {
		b.storage.Close()
		return stderr.Wrap(err)
	}
	return b.storage.Close()
}
