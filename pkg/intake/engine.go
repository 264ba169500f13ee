// Package intake turns raw level readings into drink/refill events. The
// thresholds reject sensor jitter while still catching small sips; they are
// tunable per deployment but the defaults are the calibrated ones.
package intake

import (
	"sync"

	"go.uber.org/zap"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/models"
	"hydrosense.xyz/hydration-link-service/pkg/store"
	"hydrosense.xyz/hydration-link-service/pkg/telemetry"
)

type Kind int

const (
	KindFirstReading Kind = iota
	KindDrink
	KindRefill
	KindNoise
	KindNoChange
)

func (k Kind) String() string {
	switch k {
	case KindDrink:
		return "drink"
	case KindRefill:
		return "refill"
	case KindNoise:
		return "noise"
	case KindFirstReading:
		return "first_reading"
	default:
		return "no_change"
	}
}

// Classification is the verdict for one observed reading. VolumeMl is set
// for drinks (consumed) and refills (added, informational only).
// PersistErr reports a failed drink-event write; the reading still counts.
type Classification struct {
	Kind       Kind
	VolumeMl   float64
	PersistErr error
}

type Thresholds struct {
	MinDrinkPercent float64
	MaxDrinkPercent float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinDrinkPercent: 1.5, MaxDrinkPercent: 40}
}

// BatteryAlerter receives low-battery observations. Delivery throttling is
// the alerter's problem, not the engine's.
type BatteryAlerter interface {
	BatteryLow(percent float64)
}

const (
	DefaultCapacityMl          = 500.0
	DefaultBatteryAlertPercent = 20.0
)

type Config struct {
	DeviceID            string
	CapacityMl          float64
	Thresholds          Thresholds
	BatteryAlertPercent float64
}

// Engine owns the per-connection device session: the last seen level and
// the bottle capacity. Reset it whenever the link leaves Connected so a
// reconnect never produces a phantom drink.
type Engine struct {
	cfg     Config
	intake  store.IIntake
	alerter BatteryAlerter
	logger  *zap.Logger

	mu          sync.Mutex
	lastPercent *float64
}

func NewEngine(cfg Config, intakeStore store.IIntake, alerter BatteryAlerter) *Engine {
	if cfg.CapacityMl <= 0 {
		cfg.CapacityMl = DefaultCapacityMl
	}
	if cfg.Thresholds.MinDrinkPercent <= 0 {
		cfg.Thresholds.MinDrinkPercent = DefaultThresholds().MinDrinkPercent
	}
	if cfg.Thresholds.MaxDrinkPercent <= 0 {
		cfg.Thresholds.MaxDrinkPercent = DefaultThresholds().MaxDrinkPercent
	}
	if cfg.BatteryAlertPercent <= 0 {
		cfg.BatteryAlertPercent = DefaultBatteryAlertPercent
	}
	return &Engine{
		cfg:     cfg,
		intake:  intakeStore,
		alerter: alerter,
		logger: common.GetLoggerWith(
			common.LoggerNameHydrationCore,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryIntake),
		),
	}
}

// Reset clears the session. Call on every transition out of Connected.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.lastPercent = nil
	e.mu.Unlock()
}

// SetCapacity changes the bottle capacity used for volume derivation.
func (e *Engine) SetCapacity(ml float64) {
	if ml <= 0 {
		return
	}
	e.mu.Lock()
	e.cfg.CapacityMl = ml
	e.mu.Unlock()
}

// Observe classifies one reading against the session's last level and
// persists qualifying drinks. The session level advances no matter which
// branch fires, so a failed write is never re-derived from stale state.
func (e *Engine) Observe(reading telemetry.Reading) Classification {
	e.mu.Lock()
	current := reading.WaterLevelPercent
	capacity := e.cfg.CapacityMl
	thresholds := e.cfg.Thresholds

	if e.lastPercent == nil {
		e.lastPercent = &current
		e.mu.Unlock()
		e.checkBattery(reading)
		e.logger.Debug("First reading of session", zap.Float64("percent", current))
		return Classification{Kind: KindFirstReading}
	}

	delta := *e.lastPercent - current
	e.lastPercent = &current
	e.mu.Unlock()

	e.checkBattery(reading)

	var result Classification
	switch {
	case delta >= thresholds.MinDrinkPercent && delta <= thresholds.MaxDrinkPercent:
		result = Classification{Kind: KindDrink, VolumeMl: delta / 100 * capacity}
	case delta < -thresholds.MinDrinkPercent:
		result = Classification{Kind: KindRefill, VolumeMl: -delta / 100 * capacity}
	case delta > thresholds.MaxDrinkPercent:
		// Sensor glitch or the bottle was lifted off the sensor.
		result = Classification{Kind: KindNoise}
	default:
		result = Classification{Kind: KindNoChange}
	}

	if result.Kind == KindDrink {
		event := &models.DrinkEvent{
			DeviceID:           e.cfg.DeviceID,
			Timestamp:          reading.ReceivedAt,
			VolumeMl:           result.VolumeMl,
			TemperatureCelsius: reading.TemperatureCelsius,
		}
		if err := e.intake.RecordDrinkEvent(event); err != nil {
			e.logger.Error("Failed to persist drink event",
				zap.Float64("volume_ml", result.VolumeMl), zap.Error(err))
			result.PersistErr = err
		}
	}

	e.logger.Debug("Classified reading",
		zap.String("kind", result.Kind.String()),
		zap.Float64("delta", delta),
		zap.Float64("volume_ml", result.VolumeMl))
	return result
}

func (e *Engine) checkBattery(reading telemetry.Reading) {
	if e.alerter == nil {
		return
	}
	if reading.BatteryPercent < e.cfg.BatteryAlertPercent {
		e.alerter.BatteryLow(reading.BatteryPercent)
	}
}
