// Package archive drains the audit event bus into object storage,
// writing JSONL batches so the trail survives broker retention limits.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/authloop/authserver/internal/bus"
	"github.com/authloop/authserver/internal/storage"
	"github.com/google/uuid"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Minute
	archiveContentType   = "application/x-ndjson"
)

// Archiver consumes audit events from the bus and uploads them in
// batches. A batch is flushed when it reaches BatchSize events or when
// FlushInterval elapses, whichever comes first.
type Archiver struct {
	bus           bus.Bus
	store         storage.ArchiveStore
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
	now           func() time.Time

	mu      sync.Mutex
	pending bytes.Buffer
	count   int
}

// Option adjusts Archiver construction.
type Option func(*Archiver)

// WithBatchSize overrides the batch size threshold.
func WithBatchSize(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithFlushInterval overrides the time-based flush threshold.
func WithFlushInterval(d time.Duration) Option {
	return func(a *Archiver) {
		if d > 0 {
			a.flushInterval = d
		}
	}
}

func NewArchiver(b bus.Bus, store storage.ArchiveStore, logger *slog.Logger, opts ...Option) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Archiver{
		bus:           b,
		store:         store,
		logger:        logger,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run consumes until ctx is cancelled, then flushes what remains.
func (a *Archiver) Run(ctx context.Context) error {
	if err := a.store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure archive bucket: %w", err)
	}

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() {
		done <- a.bus.Subscribe(ctx, a.accept)
	}()

	for {
		select {
		case err := <-done:
			a.flush(context.Background())
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

// accept appends a delivery to the current batch, flushing if full. It
// never returns an error for malformed payloads; those are archived
// verbatim rather than redelivered forever.
func (a *Archiver) accept(ctx context.Context, d bus.Delivery) error {
	a.mu.Lock()
	a.pending.Write(d.Body)
	a.pending.WriteByte('\n')
	a.count++
	full := a.count >= a.batchSize
	a.mu.Unlock()

	if full {
		a.flush(ctx)
	}
	return nil
}

func (a *Archiver) flush(ctx context.Context) {
	a.mu.Lock()
	if a.count == 0 {
		a.mu.Unlock()
		return
	}
	data := make([]byte, a.pending.Len())
	copy(data, a.pending.Bytes())
	count := a.count
	a.pending.Reset()
	a.count = 0
	a.mu.Unlock()

	key := a.objectKey()
	err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), archiveContentType)
	if err != nil {
		a.logger.Error("audit archive upload failed", "key", key, "events", count, "error", err)
		return
	}
	a.logger.Info("audit archive uploaded", "key", key, "events", count)
}

func (a *Archiver) objectKey() string {
	now := a.now().UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/%s.jsonl",
		now.Year(), now.Month(), now.Day(), uuid.NewString())
}
