/*
Package events delivers validation domain events to the outside world.

PURPOSE:
  The validation write path emits an event whenever an approval is
  invalidated or a reviewer changes a status. Delivery is best effort:
  a sink error is logged by the caller and never undoes the edit.

SINKS:
  LogSink:   Writes one log line per event
  AsynqSink: Enqueues a notification task on Redis (hibiken/asynq); a worker
             renders it and hands it to a Notifier (Telegram bot, e-mail)
  Multi:     Fans out to several sinks (e.g. event log table + queue)
  Async:     Moves emission off the request goroutine

SEE ALSO:
  - generic/event.go: Event and EventSink
  - validation/service.go: Emits events after a committed write
*/
package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// LOG SINK
// =============================================================================

type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Emit(_ context.Context, e generic.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[Events] %s %s %s: %s -> %s by %s changed=%v",
		e.Name, e.RecordType, e.RecordID, e.OldStatus, e.NewStatus, e.ActorName, e.ChangedFields)
	return nil
}

// =============================================================================
// MULTI - Fan-out
// =============================================================================

// Multi emits to every sink and joins their errors.
type Multi []generic.EventSink

func (m Multi) Emit(ctx context.Context, e generic.Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// ASYNC - Fire-and-forget
// =============================================================================

// Async emits on a background goroutine. Emit returns immediately; errors
// of the wrapped sink are logged. Close waits for in-flight emissions.
type Async struct {
	Sink    generic.EventSink
	Timeout time.Duration
	Logger  *log.Logger

	wg sync.WaitGroup
}

func NewAsync(sink generic.EventSink, timeout time.Duration, logger *log.Logger) *Async {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{Sink: sink, Timeout: timeout, Logger: logger}
}

func (a *Async) Emit(ctx context.Context, e generic.Event) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// The request context is usually cancelled once the handler returns.
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Timeout)
		defer cancel()
		if err := a.Sink.Emit(bg, e); err != nil {
			a.Logger.Printf("[Events] async emit of %s for %s %s failed: %v", e.Name, e.RecordType, e.RecordID, err)
		}
	}()
	return nil
}

// Close blocks until every pending emission has finished.
func (a *Async) Close() {
	a.wg.Wait()
}
