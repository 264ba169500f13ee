package store

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/models"
	_ "hydrosense.xyz/hydration-link-service/pkg/testing"
)

func clearDrinkEvents(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Db.Conn.Where("1 = 1").Delete(&models.DrinkEvent{}).Error)
}

func TestUpsertPlan(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, storeObj, _, _ := GetMockStoreWithMemorySqliteDialector(t, false, false)
	defer ctrl.Finish()

	input := &models.HydrationPlan{
		PlanType:             models.PlanTypeHealthy,
		DailyGoalMl:          2400,
		ReminderGapHours:     3,
		Enabled:              true,
		NotificationsEnabled: true,
	}
	require.NoError(t, storeObj.Plan.UpsertPlan(input))

	saved, err := storeObj.Plan.GetPlan(models.PlanTypeHealthy)
	require.NoError(t, err)
	assert.Equal(t, 2400.0, saved.DailyGoalMl)
	assert.True(t, saved.Enabled)

	// same plan type updates in place
	input.DailyGoalMl = 3000
	require.NoError(t, storeObj.Plan.UpsertPlan(input))

	saved, err = storeObj.Plan.GetPlan(models.PlanTypeHealthy)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, saved.DailyGoalMl)
}

func TestGetPlan_Missing(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, storeObj, _, _ := GetMockStoreWithMemorySqliteDialector(t, false, false)
	defer ctrl.Finish()

	require.NoError(t, storeObj.Db.Conn.Where("1 = 1").Delete(&models.HydrationPlan{}).Error)

	_, err := storeObj.Plan.GetPlan(models.PlanTypeDisease)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubscribePlanChanges(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, storeObj, _, _ := GetMockStoreWithMemorySqliteDialector(t, false, false)
	defer ctrl.Finish()

	var got []models.HydrationPlan
	unsub := storeObj.Plan.SubscribePlanChanges(func(p models.HydrationPlan) {
		got = append(got, p)
	})

	plan := &models.HydrationPlan{
		PlanType:    models.PlanTypeDisease,
		DailyGoalMl: 2000, ReminderGapHours: 2,
		ConditionName: "kidney stones",
		Enabled:       true, NotificationsEnabled: true,
	}
	require.NoError(t, storeObj.Plan.UpsertPlan(plan))
	require.Len(t, got, 1)
	assert.Equal(t, models.PlanTypeDisease, got[0].PlanType)
	assert.Equal(t, "kidney stones", got[0].ConditionName)

	unsub()
	require.NoError(t, storeObj.Plan.UpsertPlan(plan))
	assert.Len(t, got, 1, "unsubscribed callback must not fire")
}

func TestRecordDrinkEventAndSumIntake(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, storeObj, _, _ := GetMockStoreWithMemorySqliteDialector(t, false, false)
	defer ctrl.Finish()
	clearDrinkEvents(t, storeObj)

	deviceID := uuid.NewString()
	now := time.Now().Truncate(time.Second)

	for _, e := range []models.DrinkEvent{
		{DeviceID: deviceID, Timestamp: now.Add(-10 * time.Hour), VolumeMl: 500, TemperatureCelsius: 20},
		{DeviceID: deviceID, Timestamp: now.Add(-2 * time.Hour), VolumeMl: 150, TemperatureCelsius: 21},
		{DeviceID: deviceID, Timestamp: now.Add(-30 * time.Minute), VolumeMl: 100, TemperatureCelsius: 19},
	} {
		event := e
		require.NoError(t, storeObj.Intake.RecordDrinkEvent(&event))
	}

	// only events inside the trailing window count
	total, err := storeObj.Intake.SumIntakeSince(now.Add(-3 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 250.0, total)

	total, err = storeObj.Intake.SumIntakeSince(now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestRecentDrinkEvents(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, storeObj, _, _ := GetMockStoreWithMemorySqliteDialector(t, false, false)
	defer ctrl.Finish()
	clearDrinkEvents(t, storeObj)

	now := time.Now().Truncate(time.Second)
	for i, volume := range []float64{100, 200, 300} {
		event := models.DrinkEvent{
			DeviceID:  uuid.NewString(),
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			VolumeMl:  volume,
		}
		require.NoError(t, storeObj.Intake.RecordDrinkEvent(&event))
	}

	events, err := storeObj.Intake.RecentDrinkEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 300.0, events[0].VolumeMl)
	assert.Equal(t, 200.0, events[1].VolumeMl)
}

func TestUpsertPlan_WithLog(t *testing.T) {
	var buf = &bytes.Buffer{}
	common.SetTestCaptureLogger(buf, zapcore.InfoLevel)

	ctrl, storeObj, _, _ := GetMockStoreWithMemorySqliteDialector(t, false, false)
	defer ctrl.Finish()

	plan := &models.HydrationPlan{
		PlanType:    models.PlanTypeHealthy,
		DailyGoalMl: 1800, ReminderGapHours: 4,
		Enabled: true, NotificationsEnabled: true,
	}
	require.NoError(t, storeObj.Plan.UpsertPlan(plan))

	logs := ParseLogs(buf)

	found := false
	for _, log := range logs {
		lobj := log.(map[string]any)
		if lobj["category"] == "plan" &&
			lobj["logger"] == "hydration_core" &&
			lobj["msg"] == "Upserted plan" &&
			lobj["plan"].(map[string]any)["PlanType"] == "healthy" {
			found = true
		}
	}
	assert.True(t, found)
}
