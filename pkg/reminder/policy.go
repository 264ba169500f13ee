package reminder

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
)

// QuietHours is a minutes-of-day range during which nothing is delivered.
// Start > End means the range wraps past midnight (the default does:
// 22:00 to 07:00). Start == End disables quiet hours.
type QuietHours struct {
	StartMinute int
	EndMinute   int
}

func DefaultQuietHours() QuietHours {
	return QuietHours{StartMinute: 22 * 60, EndMinute: 7 * 60}
}

func (q QuietHours) Contains(t time.Time) bool {
	if q.StartMinute == q.EndMinute {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if q.StartMinute < q.EndMinute {
		return minute >= q.StartMinute && minute < q.EndMinute
	}
	return minute >= q.StartMinute || minute < q.EndMinute
}

func DefaultCooldowns() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryBehindGoal: 2 * time.Hour,
		CategoryLowBattery: 30 * time.Minute,
	}
}

// Policy gates every outgoing notification behind quiet hours and a
// per-category cooldown. The cooldown ledger is in-memory only; losing it
// on restart costs at most one early notification, which is acceptable.
type Policy struct {
	mu        sync.Mutex
	quiet     QuietHours
	cooldowns map[Category]time.Duration
	lastSent  map[Category]time.Time
	clock     func() time.Time
}

func NewPolicy(quiet QuietHours, cooldowns map[Category]time.Duration) *Policy {
	if cooldowns == nil {
		cooldowns = DefaultCooldowns()
	}
	return &Policy{
		quiet:     quiet,
		cooldowns: cooldowns,
		lastSent:  make(map[Category]time.Time),
		clock:     time.Now,
	}
}

// WithClock swaps the time source. Test hook.
func (p *Policy) WithClock(clock func() time.Time) *Policy {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}

// Allow reports whether a notification of this category may go out now.
// Both gates must pass: outside quiet hours, and past the category
// cooldown.
func (p *Policy) Allow(category Category) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.quiet.Contains(now) {
		return false
	}
	cooldown, ok := p.cooldowns[category]
	if !ok {
		return true
	}
	last, sent := p.lastSent[category]
	return !sent || now.Sub(last) >= cooldown
}

// MarkSent records a successful delivery for cooldown accounting.
func (p *Policy) MarkSent(category Category) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSent[category] = p.clock()
}

// Notifier is the single choke point in front of the sink: everything the
// subsystem sends (deficit reminders, low-battery alerts) passes the same
// policy.
type Notifier struct {
	policy *Policy
	sink   Sink
	logger *zap.Logger
	alerts *zap.Logger
}

func NewNotifier(policy *Policy, sink Sink) *Notifier {
	return &Notifier{
		policy: policy,
		sink:   sink,
		logger: common.GetLoggerWith(
			common.LoggerNameReminderScheduler,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryPolicy),
		),
		alerts: common.GetLoggerWith(
			common.LoggerNameReminderScheduler,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryAlert),
		),
	}
}

// Deliver sends the notification unless the policy suppresses it. Returns
// whether it was actually handed to the sink. Sink failures are logged and
// swallowed: the next scheduled check reassesses with fresh data anyway.
func (n *Notifier) Deliver(notification Notification) bool {
	if !n.policy.Allow(notification.Category) {
		n.logger.Debug("Notification suppressed",
			zap.String("category", string(notification.Category)))
		return false
	}
	if err := n.sink.Deliver(notification); err != nil {
		n.logger.Warn("Notification delivery failed",
			zap.String("category", string(notification.Category)),
			zap.Error(err))
		return false
	}
	n.policy.MarkSent(notification.Category)
	return true
}

// ScheduleAt books a deferred notification. The policy is not consulted:
// suppression decisions belong to delivery time, which is the platform
// sink's problem for deferred bookings.
func (n *Notifier) ScheduleAt(at time.Time, notification Notification) error {
	return n.sink.ScheduleAt(at, notification)
}

// BatteryLow implements the inference engine's alerter hook.
func (n *Notifier) BatteryLow(percent float64) {
	n.alerts.Info("Battery below alert threshold", zap.Float64("battery_percent", percent))
	n.Deliver(Notification{
		Title:    "Bottle battery low",
		Body:     fmt.Sprintf("Your bottle battery is at %.0f%%. Charge it soon.", percent),
		Priority: PriorityNormal,
		Category: CategoryLowBattery,
		Metadata: map[string]string{"battery_percent": fmt.Sprintf("%.0f", percent)},
	})
}
