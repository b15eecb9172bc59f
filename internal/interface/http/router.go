package httpservice

import (
	"time"

	"github.com/ark-network/lottery/internal/core/application"
	"github.com/ark-network/lottery/internal/infrastructure/metrics"
	"github.com/ark-network/lottery/internal/interface/http/handlers"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter exposes the lottery and admin services over REST under /v1,
// and the prometheus collectors under /metrics.
func NewRouter(
	appSvc application.Service, adminSvc application.AdminService, m *metrics.Metrics,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware(), metricsMiddleware(m))

	router.GET("/metrics", gin.WrapH(m.Handler()))

	lotteryHandler := handlers.NewLotteryHandler(appSvc)
	v1 := router.Group("/v1")
	{
		v1.GET("/info", lotteryHandler.GetInfo)
		v1.GET("/players", lotteryHandler.GetPlayers)
		v1.GET("/players/:index", lotteryHandler.GetPlayer)
		v1.POST("/join", lotteryHandler.Join)
		v1.GET("/upkeep", lotteryHandler.CheckUpkeep)
		v1.POST("/upkeep", lotteryHandler.PerformUpkeep)
		v1.GET("/draws", lotteryHandler.GetDraws)
		v1.GET("/events", lotteryHandler.GetEvents)
	}

	adminHandler := handlers.NewAdminHandler(adminSvc)
	admin := v1.Group("/admin")
	{
		admin.POST("/mint", adminHandler.Mint)
		admin.GET("/balance/:address", adminHandler.GetBalance)
		admin.POST("/fulfill", adminHandler.Fulfill)
	}

	return router
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Debugf(
			"%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(started),
		)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTP(path, c.Request.Method, c.Writer.Status(), started)
	}
}
