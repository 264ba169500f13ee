package store

import (
	"time"

	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/models"
)

func (s *Store) recordDrinkEvent(event *models.DrinkEvent) error {
	logger := common.GetLoggerWith(
		common.LoggerNameHydrationCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryIntake),
	)

	if err := s.Db.Conn.Create(event).Error; err != nil {
		return err
	}

	logger.Info("Recorded drink event", zap.Reflect("event", event))
	return nil
}

func (s *Store) sumIntakeSince(since time.Time) (float64, error) {
	var total float64
	err := s.Db.Conn.
		Model(&models.DrinkEvent{}).
		Where("timestamp >= ?", since).
		Select("COALESCE(SUM(volume_ml), 0)").
		Scan(&total).Error
	return total, err
}

func (s *Store) recentDrinkEvents(limit int) ([]models.DrinkEvent, error) {
	var events []models.DrinkEvent
	err := s.Db.Conn.
		Order("timestamp desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

type IIntakeImpl struct {
	store *Store
}

func (ii *IIntakeImpl) RecordDrinkEvent(event *models.DrinkEvent) error {
	return ii.store.recordDrinkEvent(event)
}

func (ii *IIntakeImpl) SumIntakeSince(since time.Time) (float64, error) {
	return ii.store.sumIntakeSince(since)
}

func (ii *IIntakeImpl) RecentDrinkEvents(limit int) ([]models.DrinkEvent, error) {
	return ii.store.recentDrinkEvents(limit)
}

func (s *Store) GetIIntake() IIntake {
	return &IIntakeImpl{store: s}
}
