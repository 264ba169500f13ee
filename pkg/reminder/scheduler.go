// Package reminder owns the hydration plan's reminder cadence: it polls
// accumulated intake per rolling window and nudges the user when they fall
// behind, with per-category cooldowns and quiet-hours suppression.
package reminder

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/models"
	"hydrosense.xyz/hydration-link-service/pkg/store"
)

// WakingHours bounds how many reminder intervals fit in a day. Nobody
// wants to be reminded while asleep.
const WakingHours = 16.0

// RemindersPerWindow is how many gap-sized intervals fit into the waking
// window.
func RemindersPerWindow(gapHours float64) int {
	if gapHours <= 0 {
		return 0
	}
	return int(math.Floor(WakingHours / gapHours))
}

// TargetPerInterval is the per-interval intake target, rounded up to the
// nearest 10ml so the message reads like a human wrote it.
func TargetPerInterval(dailyGoalMl float64, remindersPerWindow int) float64 {
	if remindersPerWindow <= 0 {
		return 0
	}
	return math.Ceil(dailyGoalMl/float64(remindersPerWindow)/10) * 10
}

// Scheduler drives the deficit-aware reminder loop for the active plan.
// One instance per user session; Stop tears it down with no dangling
// callbacks.
type Scheduler struct {
	intakeStore store.IIntake
	notifier    *Notifier
	logger      *zap.Logger
	clock       func() time.Time

	mu          sync.Mutex
	activePlan  *models.HydrationPlan
	stopTimer   chan struct{}
	unsubscribe func()
	stopped     bool
}

func NewScheduler(intakeStore store.IIntake, notifier *Notifier) *Scheduler {
	return &Scheduler{
		intakeStore: intakeStore,
		notifier:    notifier,
		logger:      common.GetLoggerWith(common.LoggerNameReminderScheduler),
		clock:       time.Now,
	}
}

// WithClock swaps the time source. Test hook.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	return s
}

// Watch subscribes the scheduler to the store's plan-change stream and
// applies the currently active plan, preferring a medical plan when both
// exist.
func (s *Scheduler) Watch(planStore store.IPlan) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.unsubscribe = planStore.SubscribePlanChanges(func(plan models.HydrationPlan) {
		if !plan.Enabled {
			// an edit to some other, inactive plan must not cancel the
			// running one
			active := s.ActivePlan()
			if active == nil || active.PlanType != plan.PlanType {
				return
			}
		}
		s.ApplyPlan(&plan)
	})
	s.mu.Unlock()

	for _, planType := range []models.PlanType{models.PlanTypeDisease, models.PlanTypeHealthy} {
		plan, err := planStore.GetPlan(planType)
		if err != nil {
			continue
		}
		if plan.Enabled {
			s.ApplyPlan(plan)
			return
		}
	}
}

// ApplyPlan atomically replaces the reminder timer with one for the given
// plan. The old timer is cancelled before the new one is installed, so no
// check window sees both. A nil, disabled, muted, or gap-less plan just
// cancels.
func (s *Scheduler) ApplyPlan(plan *models.HydrationPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
	s.activePlan = nil

	if s.stopped || plan == nil || !plan.Enabled || !plan.NotificationsEnabled || plan.ReminderGapHours <= 0 {
		s.logger.Info("Reminders stopped", zap.Bool("had_plan", plan != nil))
		return
	}

	perWindow := RemindersPerWindow(plan.ReminderGapHours)
	if perWindow <= 0 {
		s.logger.Warn("Reminder gap exceeds the waking window, reminders stopped",
			zap.Float64("gap_hours", plan.ReminderGapHours))
		return
	}
	target := TargetPerInterval(plan.DailyGoalMl, perWindow)

	planCopy := *plan
	stop := make(chan struct{})
	s.stopTimer = stop
	s.activePlan = &planCopy

	s.logger.Info("Reminder schedule installed",
		zap.String("plan_type", string(planCopy.PlanType)),
		zap.Float64("gap_hours", planCopy.ReminderGapHours),
		zap.Int("per_window", perWindow),
		zap.Float64("target_ml", target))

	go s.run(planCopy, target, stop)
}

// ActivePlan returns a copy of the plan currently driving reminders, or
// nil.
func (s *Scheduler) ActivePlan() *models.HydrationPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePlan == nil {
		return nil
	}
	plan := *s.activePlan
	return &plan
}

// Stop cancels the timer and the plan subscription. Safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
	s.activePlan = nil
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Scheduler) run(plan models.HydrationPlan, target float64, stop <-chan struct{}) {
	interval := time.Duration(plan.ReminderGapHours * float64(time.Hour))

	// first check fires immediately, then on the fixed period
	s.check(plan, target)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.check(plan, target)
		}
	}
}

// check compares intake over the trailing gap window against the interval
// target and delivers a deficit-aware reminder when the user is behind.
func (s *Scheduler) check(plan models.HydrationPlan, target float64) {
	now := s.clock()
	windowStart := now.Add(-time.Duration(plan.ReminderGapHours * float64(time.Hour)))

	accumulated, err := s.intakeStore.SumIntakeSince(windowStart)
	if err != nil {
		// next interval's check reassesses; no retry here
		s.logger.Warn("Intake query failed, skipping check", zap.Error(err))
		return
	}

	if accumulated >= target {
		s.logger.Debug("On pace", zap.Float64("accumulated_ml", accumulated), zap.Float64("target_ml", target))
		return
	}

	s.notifier.Deliver(buildReminder(plan, target, accumulated))
}

func buildReminder(plan models.HydrationPlan, target, accumulated float64) Notification {
	n := Notification{
		Title:    "Time to drink water",
		Priority: PriorityNormal,
		Category: CategoryBehindGoal,
		Metadata: map[string]string{
			"target_ml":      fmt.Sprintf("%.0f", target),
			"accumulated_ml": fmt.Sprintf("%.0f", accumulated),
		},
	}

	if accumulated == 0 {
		// nothing logged this window: a plain prompt, not a scolding
		n.Body = fmt.Sprintf("Have about %.0f ml of water to stay on track.", target)
	} else {
		n.Body = fmt.Sprintf("You're %.0f ml behind this interval's %.0f ml target.", target-accumulated, target)
	}

	if plan.PlanType == models.PlanTypeDisease {
		n.Priority = PriorityHigh
		n.Title = "Hydration reminder"
		if plan.ConditionName != "" {
			n.Body = fmt.Sprintf("Staying hydrated matters for %s. %s", plan.ConditionName, n.Body)
			n.Metadata["condition"] = plan.ConditionName
		}
	}
	return n
}

// ScheduleFixed books the legacy fixed-gap reminders through the sink's
// deferred path: one generic notification per interval, no deficit
// awareness. Kept for plans created before the smart scheduler existed.
func (s *Scheduler) ScheduleFixed(plan *models.HydrationPlan) error {
	if plan == nil || !plan.Enabled || plan.ReminderGapHours <= 0 {
		return nil
	}
	perWindow := RemindersPerWindow(plan.ReminderGapHours)
	now := s.clock()
	gap := time.Duration(plan.ReminderGapHours * float64(time.Hour))

	for i := 1; i <= perWindow; i++ {
		err := s.notifier.ScheduleAt(now.Add(time.Duration(i)*gap), Notification{
			Title:    "Time to drink water",
			Body:     "Keep sipping to reach your daily goal.",
			Priority: PriorityNormal,
			Category: CategoryBehindGoal,
		})
		if err != nil {
			return fmt.Errorf("schedule reminder %d: %w", i, err)
		}
	}
	return nil
}
