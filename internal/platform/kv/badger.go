package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerGCInterval = 5 * time.Minute

// Badger stores keys in badger. An empty data dir keeps the database in
// memory, which is what tests and the demo profile use.
type Badger struct {
	db      *badger.DB
	logger  *slog.Logger
	dataDir string
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func OpenBadger(dataDir string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		opts = badger.DefaultOptions(dataDir)
	}
	opts = opts.
		WithLogger(newBadgerLogger(logger)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	store := &Badger{
		db:      db,
		logger:  logger,
		dataDir: dataDir,
		stop:    make(chan struct{}),
	}
	if dataDir != "" {
		store.wg.Add(1)
		go store.valueLogGC()
	}
	return store, nil
}

func (b *Badger) View(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapBadgerError(b.db.View(func(txn *badger.Txn) error {
		return fn(badgerTxn{txn: txn})
	}))
}

func (b *Badger) Update(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapBadgerError(b.db.Update(func(txn *badger.Txn) error {
		return fn(badgerTxn{txn: txn, writable: true})
	}))
}

func (b *Badger) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stop)
		b.wg.Wait()
		err = b.db.Close()
	})
	return err
}

func (b *Badger) valueLogGC() {
	defer b.wg.Done()
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.logger.Warn("badger value log gc failed",
					"event", "kv_badger_gc_failed",
					"module", "internal/platform/kv",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}
	}
}

type badgerTxn struct {
	txn      *badger.Txn
	writable bool
}

func (t badgerTxn) Get(key string) ([]byte, error) {
	item, err := t.txn.Get([]byte(key))
	if err != nil {
		return nil, mapBadgerError(err)
	}
	return item.ValueCopy(nil)
}

func (t badgerTxn) Set(key string, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.txn.Set([]byte(key), value)
}

func (t badgerTxn) Delete(key string) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.txn.Delete([]byte(key))
}

func (t badgerTxn) Iterate(prefix string, fn func(key string, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := t.txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(string(item.KeyCopy(nil)), value); err != nil {
			return err
		}
	}
	return nil
}

func mapBadgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, badger.ErrConflict):
		return ErrConflict
	case errors.Is(err, badger.ErrDBClosed):
		return ErrClosed
	default:
		return err
	}
}

// badgerLogger adapts slog to badger's printf style logger.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...), "component", "kv")
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...), "component", "kv")
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...), "component", "kv")
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...), "component", "kv")
}
