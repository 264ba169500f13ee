package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"hydrosense.xyz/hydration-link-service/pkg/common"
	"hydrosense.xyz/hydration-link-service/pkg/link"
	"hydrosense.xyz/hydration-link-service/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"
)

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (rs *RestfulServer) ConnectDevice(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	if rs.Link.State() != link.StateDisconnected {
		c.JSON(http.StatusConflict, gin.H{"error": "connect already in progress"})
		return
	}

	// Connect blocks through scan and subscribe; the caller tracks the
	// outcome over /ws or /device/status.
	go rs.Link.Connect(context.Background())

	c.JSON(http.StatusAccepted, gin.H{"status": "connecting"})
}

func (rs *RestfulServer) DisconnectDevice(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	rs.Link.Disconnect()

	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

type CommandRequest struct {
	Command string `json:"command"`
}

var commandRequestSchema = z.Struct(z.Shape{
	"Command": z.String().Required(),
})

func (rs *RestfulServer) SendCommand(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req CommandRequest
	if err := commandRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	if !link.IsKnownCommand(req.Command) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command: " + req.Command})
		return
	}

	if err := rs.Link.SendCommand(req.Command); err != nil {
		if errors.Is(err, link.ErrNotConnected) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) DeviceStatus(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	readingsSeen, decodeFailures := rs.Link.Counters()
	status := gin.H{
		"state":           rs.Link.State().String(),
		"readings_seen":   readingsSeen,
		"decode_failures": decodeFailures,
	}

	if reading := rs.Link.LastReading(); reading != nil {
		status["last_reading"] = gin.H{
			"water_level_percent": reading.WaterLevelPercent,
			"temperature_celsius": reading.TemperatureCelsius,
			"battery_percent":     reading.BatteryPercent,
			"status":              reading.Status.String(),
			"received_at":         reading.ReceivedAt,
		}
	}

	c.JSON(http.StatusOK, status)
}

func parsePlanType(raw string) (models.PlanType, bool) {
	switch models.PlanType(raw) {
	case models.PlanTypeHealthy, models.PlanTypeDisease:
		return models.PlanType(raw), true
	default:
		return "", false
	}
}

func (rs *RestfulServer) GetPlan(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	planType, ok := parsePlanType(c.Param("plan_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan type: " + c.Param("plan_type")})
		return
	}

	plan, err := rs.Store.Plan.GetPlan(planType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such plan"})
			return
		}
		c.JSON(http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

type PlanRequest struct {
	DailyGoalMl          float64 `json:"daily_goal_ml"`
	ReminderGapHours     float64 `json:"reminder_gap_hours"`
	ConditionName        string  `json:"condition_name"`
	Enabled              bool    `json:"enabled"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
}

var planRequestSchema = z.Struct(z.Shape{
	"DailyGoalMl":          z.Float64().Required().GT(0),
	"ReminderGapHours":     z.Float64().Required().GT(0),
	"ConditionName":        z.String(),
	"Enabled":              z.Bool().Default(true),
	"NotificationsEnabled": z.Bool().Default(true),
})

func (rs *RestfulServer) UpsertPlan(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	planType, ok := parsePlanType(c.Param("plan_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan type: " + c.Param("plan_type")})
		return
	}

	var req PlanRequest
	if err := planRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	if err := rs.Store.Plan.UpsertPlan(&models.HydrationPlan{
		PlanType:             planType,
		DailyGoalMl:          req.DailyGoalMl,
		ReminderGapHours:     req.ReminderGapHours,
		ConditionName:        req.ConditionName,
		Enabled:              req.Enabled,
		NotificationsEnabled: req.NotificationsEnabled,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, err)
		return
	}

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) IntakeSummary(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	hours, err := strconv.ParseFloat(c.DefaultQuery("hours", "24"), 64)
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive number"})
		return
	}

	total, err := rs.Store.Intake.SumIntakeSince(time.Now().Add(-time.Duration(hours * float64(time.Hour))))
	if err != nil {
		c.JSON(http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"window_hours": hours, "total_ml": total})
}

func (rs *RestfulServer) IntakeEvents(c *gin.Context) {
	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	events, err := rs.Store.Intake.RecentDrinkEvents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"rate":  z.Float64().Required(),
	"burst": z.Int().Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(c.ClientIP(), req.Rate, req.Burst)

	c.Status(http.StatusOK)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades the connection and parks it in the hub. The read loop
// exists only to notice the client going away.
func (rs *RestfulServer) ServeWs(c *gin.Context) {
	logger := common.GetLoggerWith(common.LoggerNameRestfulServer)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	rs.Hub.AddClient(conn)
	logger.Debug("WebSocket client attached", zap.Int("clients", rs.Hub.ClientCount()))

	go func() {
		defer rs.Hub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
