// Package notify delivers student-facing notifications. Delivery happens
// after the owning transaction commits; a failed delivery is logged and
// never rolls the state change back.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notification is one message for a student.
type Notification struct {
	StudentID     string `json:"student_id"`
	ApplicationID string `json:"application_id"`
	PositionID    string `json:"position_id"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

// Notification kinds.
const (
	KindOfferReady = "offer_ready"
)

// Dispatcher delivers notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher writes notifications to the structured log. It stands in for
// a mail or push integration.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification dispatched",
		zap.String("kind", n.Kind),
		zap.String("student_id", n.StudentID),
		zap.String("application_id", n.ApplicationID),
		zap.String("position_id", n.PositionID),
	)
	return nil
}

// Recorder captures notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Dispatch(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of everything dispatched so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
