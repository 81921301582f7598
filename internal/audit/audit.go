// Package audit records successful credential lifecycle transitions to
// an append-only trail. Recording is non-blocking for request handlers:
// events are buffered and dispatched by a background goroutine, and an
// event is dropped (and counted) rather than stalling a request.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/authloop/authserver/types"
	"github.com/google/uuid"
)

const defaultBufferSize = 256

// Sink persists audit events.
type Sink interface {
	Emit(ctx context.Context, event types.AuditEvent) error
}

// Recorder buffers events and feeds them to a Sink asynchronously.
// mu serializes sends against channel close: Record sends under the
// read lock, Close closes under the write lock, so a send can never
// race the close.
type Recorder struct {
	sink    Sink
	logger  *slog.Logger
	events  chan types.AuditEvent
	dropped atomic.Uint64
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRecorder starts a Recorder draining into sink. bufferSize <= 0
// falls back to the default.
func NewRecorder(sink Sink, bufferSize int, logger *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:   sink,
		logger: logger,
		events: make(chan types.AuditEvent, bufferSize),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record queues an event. It never blocks: when the buffer is full, or
// the recorder is already closed, the event is dropped and the drop
// counter incremented.
func (r *Recorder) Record(eventType types.AuditEventType, userID, email string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	event := types.AuditEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Email:     email,
		Timestamp: time.Now().UTC(),
	}
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Emit(ctx, event); err != nil {
			r.logger.Error("audit emit failed",
				"event_type", event.Type,
				"user_id", event.UserID,
				"error", err,
			)
		}
		cancel()
	}
}
