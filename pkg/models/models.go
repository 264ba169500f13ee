package models

import "time"

type PlanType string

const (
	PlanTypeHealthy PlanType = "healthy"
	PlanTypeDisease PlanType = "disease"
)

// HydrationPlan is owned by the surrounding app; this subsystem only reads
// it (plus the upsert path the app goes through). At most one plan type is
// active at a time, enforced by the app UI.
type HydrationPlan struct {
	PlanType             PlanType `gorm:"primaryKey;type:varchar(20);check:plan_type IN ('healthy','disease')"`
	DailyGoalMl          float64
	ReminderGapHours     float64
	ConditionName        string
	Enabled              bool
	NotificationsEnabled bool
}

type DrinkEvent struct {
	ID                 uint      `gorm:"primaryKey"`
	DeviceID           string    `gorm:"index"`
	Timestamp          time.Time `gorm:"index"`
	VolumeMl           float64
	TemperatureCelsius int
}
