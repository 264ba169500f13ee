package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/db"
	hydroHttp "hydrosense.xyz/hydration-link-service/pkg/http"
	"hydrosense.xyz/hydration-link-service/pkg/intake"
	"hydrosense.xyz/hydration-link-service/pkg/link"
	"hydrosense.xyz/hydration-link-service/pkg/link/bluez"
	"hydrosense.xyz/hydration-link-service/pkg/reminder"
	"hydrosense.xyz/hydration-link-service/pkg/store"
	"hydrosense.xyz/hydration-link-service/pkg/telemetry"
)

const (
	defaultDeviceName = "HydroBottle"

	// HM-10 style UART service the bottle firmware exposes.
	defaultServiceUUID        = "0000ffe0-0000-1000-8000-00805f9b34fb"
	defaultCharacteristicUUID = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

func main() {
	var err error

	err = godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file, copy .env.example to .env first if in development")
	}

	var dbInstance *db.DB
	hydroDbType := os.Getenv(common.EnvKeyHydroDBType)
	switch hydroDbType {
	case "file":
		dbInstance = db.GetInstance(db.UseSqliteDialector())
	case "memory":
		dbInstance = db.GetInstance(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown HYDRO_DB_TYPE: " + hydroDbType)
	}

	httpHostPort := strings.TrimSpace(os.Getenv(common.EnvKeyHydroHttpHostPort))

	var defaultRate float64
	var defaultBurst int64

	if defaultRate, err = strconv.ParseFloat(os.Getenv(common.EnvKeyHydroDefaultRate), 64); err != nil {
		log.Fatal("Invalid HYDRO_DEFAULT_RATE, or not set in .env, should be a float64 value")
	}

	if defaultBurst, err = strconv.ParseInt(os.Getenv(common.EnvKeyHydroDefaultBurst), 10, 64); err != nil {
		log.Fatal("Invalid HYDRO_DEFAULT_BURST, or not set in .env, should be an int value")
	}

	deviceName := strings.TrimSpace(os.Getenv(common.EnvKeyHydroDeviceName))
	if deviceName == "" {
		deviceName = defaultDeviceName
	}

	scanTimeout := link.DefaultScanTimeout
	if raw := os.Getenv(common.EnvKeyHydroScanTimeoutSeconds); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			log.Fatal("Invalid HYDRO_SCAN_TIMEOUT_SECONDS, should be a positive int value")
		}
		scanTimeout = time.Duration(seconds) * time.Second
	}

	logger := common.GetLogger()

	storeCore := store.Store{
		Db: *dbInstance,
	}
	storeCore.WithServices(store.ServiceOpts{
		Plan:   storeCore.GetIPlan(),
		Intake: storeCore.GetIIntake(),
	})

	transport, err := bluez.NewTransport()
	if err != nil {
		log.Fatalf("bluetooth transport unavailable: %v", err)
	}

	manager := link.NewManager(link.Config{
		DeviceName:         deviceName,
		ServiceUUID:        defaultServiceUUID,
		CharacteristicUUID: defaultCharacteristicUUID,
		ScanTimeout:        scanTimeout,
	}, transport, nil)
	defer manager.Close()

	notifier := reminder.NewNotifier(
		reminder.NewPolicy(reminder.DefaultQuietHours(), nil),
		reminder.LogSink{},
	)

	engine := intake.NewEngine(intake.Config{
		DeviceID: deviceName,
	}, storeCore.Intake, notifier)

	scheduler := reminder.NewScheduler(storeCore.Intake, notifier)
	scheduler.Watch(storeCore.Plan)
	defer scheduler.Stop()

	hub := hydroHttp.NewHub()

	manager.SubscribeReadings(func(reading telemetry.Reading) {
		classification := engine.Observe(reading)

		hub.Broadcast(hydroHttp.Event{Type: hydroHttp.EventReading, Payload: gin.H{
			"water_level_percent": reading.WaterLevelPercent,
			"temperature_celsius": reading.TemperatureCelsius,
			"battery_percent":     reading.BatteryPercent,
			"status":              reading.Status.String(),
		}})

		if classification.Kind == intake.KindDrink {
			hub.Broadcast(hydroHttp.Event{Type: hydroHttp.EventDrinkEvent, Payload: gin.H{
				"volume_ml": classification.VolumeMl,
			}})
		}
	})

	manager.SubscribeStateChanges(func(change link.StateChange) {
		if change.State != link.StateConnected {
			// a stale session level across reconnects would fabricate drinks
			engine.Reset()
		}

		event := gin.H{
			"state": change.State.String(),
			"cause": change.Cause.String(),
		}
		if change.Err != nil {
			event["error"] = change.Err.Error()
		}
		hub.Broadcast(hydroHttp.Event{Type: hydroHttp.EventLinkState, Payload: event})
	})

	if httpHostPort == "" {
		// fallback to default http port
		httpHostPort = ":1080"
	}

	logger.Info("Starting HTTP server on port " + httpHostPort)
	rs := &hydroHttp.RestfulServer{
		Server:           gin.Default(),
		Link:             manager,
		Store:            &storeCore,
		Hub:              hub,
		RateLimiterStore: hydroHttp.NewRateLimiterStore(rate.Limit(defaultRate), int(defaultBurst)),
	}
	rs.Setup()

	logger.Info("http server created with:",
		zap.String("default_limiter",
			fmt.Sprintf("{\"default_rate\": %v, \"default_burst\": %v}", defaultRate, defaultBurst)))

	logger.Info("Starting HTTP server on: " + httpHostPort)
	if err := rs.Server.Run(httpHostPort); err != nil {
		log.Fatalf("http server failed to serve: %v", err)
	}
}
