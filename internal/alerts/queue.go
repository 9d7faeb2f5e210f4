package alerts

import (
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Queue is an ordered, auto-expiring collection of alerts. Only the most
// recently enqueued non-dismissed alert is exposed for display; older
// non-dismissed alerts stay in the queue so their expiry timers still fire,
// but are never rendered. Every alert auto-dismisses after a fixed delay
// unless explicitly dismissed first.
type Queue struct {
	mu           sync.Mutex
	alerts       []*Alert
	timers       map[string]*time.Timer
	dismissAfter time.Duration
	logger       log.Interface
	closed       bool
}

// NewQueue creates a queue whose alerts auto-dismiss after the given delay.
func NewQueue(dismissAfter time.Duration, logger log.Interface) *Queue {
	return &Queue{
		timers:       make(map[string]*time.Timer),
		dismissAfter: dismissAfter,
		logger:       logger,
	}
}

// Enqueue accepts an alert, assigns it an instance id, and schedules its
// auto-dismissal. Returns the alert id.
func (q *Queue) Enqueue(a Alert) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ""
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	queued := a
	q.alerts = append(q.alerts, &queued)

	id := queued.ID
	q.timers[id] = time.AfterFunc(q.dismissAfter, func() {
		q.Dismiss(id)
	})

	q.logger.WithFields(log.Fields{
		"alertId": id,
		"kind":    string(queued.Kind),
	}).Debug("Alert enqueued")

	return id
}

// Dismiss marks an alert dismissed and drops it from the live collection.
// Dismissing an unknown or already-dismissed id is a no-op.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}

	for i, a := range q.alerts {
		if a.ID != id {
			continue
		}

		a.Dismissed = true
		q.alerts = append(q.alerts[:i], q.alerts[i+1:]...)

		q.logger.WithField("alertId", id).Debug("Alert dismissed")
		return
	}
}

// Visible returns a copy of the most recently enqueued non-dismissed alert,
// or nil when nothing is pending.
func (q *Queue) Visible() *Alert {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.alerts) - 1; i >= 0; i-- {
		if !q.alerts[i].Dismissed {
			visible := *q.alerts[i]
			return &visible
		}
	}
	return nil
}

// Pending returns copies of all non-dismissed alerts in enqueue order.
func (q *Queue) Pending() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Alert, 0, len(q.alerts))
	for _, a := range q.alerts {
		if !a.Dismissed {
			out = append(out, *a)
		}
	}
	return out
}

// Close stops all outstanding expiry timers. Further enqueues are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
}
