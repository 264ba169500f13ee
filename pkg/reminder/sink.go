package reminder

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
)

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

type Category string

const (
	CategoryBehindGoal Category = "behind_goal"
	CategoryLowBattery Category = "low_battery"
)

type Notification struct {
	Title    string
	Body     string
	Priority Priority
	Category Category
	Metadata map[string]string
}

// Sink is the notification-delivery collaborator: show a message now, or
// book one for later. Delivery is fire-and-forget.
type Sink interface {
	Deliver(n Notification) error
	ScheduleAt(at time.Time, n Notification) error
}

// LogSink writes notifications to the structured log. It is the default
// sink when no platform delivery channel is wired in.
type LogSink struct{}

func (LogSink) Deliver(n Notification) error {
	common.GetLoggerWith(common.LoggerNameReminderScheduler).Info("Notification delivered",
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("category", string(n.Category)),
		zap.Int("priority", int(n.Priority)))
	return nil
}

func (LogSink) ScheduleAt(at time.Time, n Notification) error {
	common.GetLoggerWith(common.LoggerNameReminderScheduler).Info("Notification scheduled",
		zap.Time("at", at),
		zap.String("title", n.Title),
		zap.String("category", string(n.Category)))
	return nil
}

// ScheduledNotification is one deferred booking recorded by FakeSink.
type ScheduledNotification struct {
	At           time.Time
	Notification Notification
}

// FakeSink records deliveries for test assertions.
type FakeSink struct {
	mu sync.Mutex

	// DeliverErr, if set, is returned by Deliver.
	DeliverErr error

	// ScheduleErr, if set, is returned by ScheduleAt.
	ScheduleErr error

	delivered []Notification
	scheduled []ScheduledNotification
}

func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (f *FakeSink) Deliver(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeliverErr != nil {
		return f.DeliverErr
	}
	f.delivered = append(f.delivered, n)
	return nil
}

func (f *FakeSink) ScheduleAt(at time.Time, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScheduleErr != nil {
		return f.ScheduleErr
	}
	f.scheduled = append(f.scheduled, ScheduledNotification{At: at, Notification: n})
	return nil
}

func (f *FakeSink) Delivered() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func (f *FakeSink) Scheduled() []ScheduledNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ScheduledNotification, len(f.scheduled))
	copy(out, f.scheduled)
	return out
}
