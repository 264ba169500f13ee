package store

import (
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/models"
)

func (s *Store) upsertPlan(input *models.HydrationPlan) error {
	logger := common.GetLoggerWith(
		common.LoggerNameHydrationCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPlan),
	)

	plan := models.HydrationPlan{
		PlanType:             input.PlanType,
		DailyGoalMl:          input.DailyGoalMl,
		ReminderGapHours:     input.ReminderGapHours,
		ConditionName:        input.ConditionName,
		Enabled:              input.Enabled,
		NotificationsEnabled: input.NotificationsEnabled,
	}

	logger.Info("Received plan", zap.Reflect("plan", plan))

	err := s.Db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_type"}},
		UpdateAll: true,
	}).Create(&plan).Error
	if err != nil {
		return err
	}

	logger.Info("Upserted plan", zap.Reflect("plan", plan))

	s.notifyPlanChanged(plan)
	return nil
}

func (s *Store) getPlan(planType models.PlanType) (*models.HydrationPlan, error) {
	var plan models.HydrationPlan
	err := s.Db.Conn.First(&plan, "plan_type = ?", planType).Error
	return &plan, err
}

type IPlanImpl struct {
	store *Store
}

func (ip *IPlanImpl) GetPlan(planType models.PlanType) (*models.HydrationPlan, error) {
	return ip.store.getPlan(planType)
}

func (ip *IPlanImpl) UpsertPlan(input *models.HydrationPlan) error {
	return ip.store.upsertPlan(input)
}

func (ip *IPlanImpl) SubscribePlanChanges(fn func(models.HydrationPlan)) func() {
	return ip.store.subscribePlanChanges(fn)
}

func (s *Store) GetIPlan() IPlan {
	return &IPlanImpl{store: s}
}
