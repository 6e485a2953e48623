package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/yixinin/camsight/stderr"
)

type Storage struct {
	db *badger.DB
}

// Open opens (or creates) a badger store at dir. An empty dir keeps
// everything in memory.
func Open(dir string) (*Storage, error) {
	var opt badger.Options
	if dir == "" {
		opt = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opt = badger.DefaultOptions(dir)
	}
	opt = opt.WithLogger(nil)
	db, err := badger.Open(opt)
	if err != nil {
		return nil, stderr.Wrap(err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return stderr.Wrap(s.db.Close())
}

// Sequence leases a monotonic counter stored under key.
func (s *Storage) Sequence(key string) (*badger.Sequence, error) {
	seq, err := s.db.GetSequence([]byte(key), 100)
	return seq, stderr.Wrap(err)
}

func Set[T any](ctx context.Context, s *Storage, key string, value T, ttl int) error {
	data, err := json.Marshal(value)
	if err != nil {
		return stderr.Wrap(err)
	}
	return stderr.Wrap(s.db.Update(func(txn *badger.Txn) error {
		if ttl <= 0 {
			return txn.Set([]byte(key), data)
		}
		e := badger.NewEntry([]byte(key), data).
			WithTTL(time.Second * time.Duration(ttl))
		return txn.SetEntry(e)
	}))
}

func Get[T any](ctx context.Context, s *Storage, key string) (T, error) {
	var t T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	return t, err
}

func Delete(ctx context.Context, s *Storage, key string) error {
	return stderr.Wrap(s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}))
}

// Scan returns up to limit values under prefix in key order. Values for
// which keep returns false are skipped and do not count toward limit.
// limit <= 0 means no limit.
func Scan[T any](ctx context.Context, s *Storage, prefix string, limit int, keep func(T) bool) ([]T, error) {
	var ts = make([]T, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		var opt = badger.DefaultIteratorOptions
		opt.Prefix = []byte(prefix)
		iter := txn.NewIterator(opt)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var t T
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				return stderr.Wrap(err)
			}
			if keep != nil && !keep(t) {
				continue
			}
			ts = append(ts, t)
			if limit > 0 && len(ts) == limit {
				return nil
			}
		}
		return nil
	})
	return ts, err
}
