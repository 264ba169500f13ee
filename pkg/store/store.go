package store

import (
	"sync"
	"time"

	"hydrosense.xyz/hydration-link-service/pkg/db"
	"hydrosense.xyz/hydration-link-service/pkg/models"
)

type IPlan interface {
	GetPlan(planType models.PlanType) (*models.HydrationPlan, error)
	UpsertPlan(input *models.HydrationPlan) error
	SubscribePlanChanges(fn func(models.HydrationPlan)) func()
}

type IIntake interface {
	RecordDrinkEvent(event *models.DrinkEvent) error
	SumIntakeSince(since time.Time) (float64, error)
	RecentDrinkEvents(limit int) ([]models.DrinkEvent, error)
}

// Store is the persistence hub for plans and drinking history. The
// reminder scheduler and the inference engine only see the narrow IPlan /
// IIntake interfaces, so either can be mocked independently.
type Store struct {
	Db     db.DB
	Plan   IPlan
	Intake IIntake

	mu          sync.Mutex
	subscribers []planSubscriber
	nextSubID   int
}

type planSubscriber struct {
	id int
	fn func(models.HydrationPlan)
}

type ServiceOpts struct {
	Plan   IPlan
	Intake IIntake
}

func (s *Store) WithServices(opts ServiceOpts) *Store {
	if opts.Plan != nil {
		s.Plan = opts.Plan
	}
	if opts.Intake != nil {
		s.Intake = opts.Intake
	}
	return s
}

func (s *Store) subscribePlanChanges(fn func(models.HydrationPlan)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, planSubscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notifyPlanChanged(plan models.HydrationPlan) {
	s.mu.Lock()
	fns := make([]func(models.HydrationPlan), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		fns = append(fns, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(plan)
	}
}
