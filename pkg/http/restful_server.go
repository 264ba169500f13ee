package http

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"hydrosense.xyz/hydration-link-service/pkg/link"
	"hydrosense.xyz/hydration-link-service/pkg/store"
)

type RestfulServer struct {
	Server           *gin.Engine
	Link             *link.Manager
	Store            *store.Store
	Hub              *Hub
	RateLimiterStore *RateLimiterStore
}

func (rs *RestfulServer) GetLimiter(clientKey string) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(clientKey)
	}
}

func (rs *RestfulServer) CheckClientLimiter(clientKey string) bool {
	limiter := rs.GetLimiter(clientKey)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (rs *RestfulServer) SetLimiter(clientKey string, clientRate float64, clientBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(clientKey, rate.Limit(clientRate), clientBurst)
}

func (rs *RestfulServer) Setup() {
	if rs.Hub == nil {
		rs.Hub = NewHub()
	}

	rs.Server.GET("/healthz", rs.HealthCheck)

	device := rs.Server.Group("/device")
	{
		device.POST("/connect", rs.ConnectDevice)
		device.POST("/disconnect", rs.DisconnectDevice)
		device.POST("/command", rs.SendCommand)
		device.GET("/status", rs.DeviceStatus)
	}

	plans := rs.Server.Group("/plans/:plan_type")
	{
		plans.GET("", rs.GetPlan)
		plans.POST("", rs.UpsertPlan)
	}

	intake := rs.Server.Group("/intake")
	{
		intake.GET("/summary", rs.IntakeSummary)
		intake.GET("/events", rs.IntakeEvents)
	}

	rs.Server.POST("/limiter", rs.PostLimiter)
	rs.Server.GET("/ws", rs.ServeWs)
}
