package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// NOTIFY TASK
// =============================================================================

const (
	TypeValidationNotify = "validation:notify"
	NotifyQueue          = "notifications"
)

func NewNotifyTask(e generic.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeValidationNotify, payload), nil
}

func ParseNotifyTask(t *asynq.Task) (generic.Event, error) {
	var e generic.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return generic.Event{}, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return e, nil
}

// =============================================================================
// ASYNQ SINK
// =============================================================================

// Enqueuer is the part of *asynq.Client the sink needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqSink enqueues one notify task per event. The event ID is the task
// ID, so re-emitting the same event is deduplicated by the queue.
type AsynqSink struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

func NewAsynqSink(client Enqueuer) *AsynqSink {
	return &AsynqSink{Client: client, Queue: NotifyQueue, MaxRetry: 3}
}

func (s *AsynqSink) Emit(ctx context.Context, e generic.Event) error {
	task, err := NewNotifyTask(e)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(s.Queue), asynq.MaxRetry(s.MaxRetry)}
	if e.ID != "" {
		opts = append(opts, asynq.TaskID("validation-"+e.ID))
	}
	if _, err := s.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeValidationNotify, err)
	}
	return nil
}

// =============================================================================
// WORKER SIDE
// =============================================================================

// Notifier delivers a rendered message (Telegram, e-mail). Implemented
// outside this module.
type Notifier interface {
	Notify(ctx context.Context, e generic.Event, message string) error
}

// LogNotifier writes rendered messages to the log. Used when no bot is
// configured.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(_ context.Context, e generic.Event, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[Notify] %s", message)
	return nil
}

// HandleNotify returns the asynq handler for TypeValidationNotify.
func HandleNotify(n Notifier, logger *log.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		e, err := ParseNotifyTask(t)
		if err != nil {
			// A malformed payload never succeeds on retry.
			logger.Printf("[Events] dropping task: %v", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return n.Notify(ctx, e, Render(e))
	}
}

// NewServeMux registers the notify handler.
func NewServeMux(n Notifier, logger *log.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeValidationNotify, HandleNotify(n, logger))
	return mux
}

var recordLabels = map[generic.RecordType]string{
	generic.RecordAttendance:   "Attendance",
	generic.RecordPatientCount: "Patient count",
}

// Render formats an event as a short plain-text message.
func Render(e generic.Event) string {
	label := recordLabels[e.RecordType]
	if label == "" {
		label = string(e.RecordType)
	}

	var b strings.Builder
	switch e.Name {
	case generic.EventValidationInvalidated:
		fmt.Fprintf(&b, "%s %s was edited after %s and needs review again.\n", label, e.RecordID, e.OldStatus)
		fmt.Fprintf(&b, "Changed: %s\n", strings.Join(e.ChangedFields, ", "))
	default:
		fmt.Fprintf(&b, "%s %s: %s -> %s\n", label, e.RecordID, e.OldStatus, e.NewStatus)
	}
	if e.ActorName != "" {
		fmt.Fprintf(&b, "By: %s\n", e.ActorName)
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, e.Context[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
