package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiongtingping/wenpai-sub001/internal/handlers"
)

func (a *App) RegisterRoutes(h *handlers.MonitorHandler) {
	app := a.Router.Group("/monitors")
	app.POST("", h.StartMonitor)
	app.GET("", h.RecoverActive)
	app.POST("/check-all", h.CheckAll)
	app.GET("/:id", h.GetRecord)
	app.POST("/:id/refresh", h.RefreshNow)
	app.POST("/:id/pause", h.Pause)
	app.POST("/:id/resume", h.Resume)
	app.POST("/:id/stop", h.Stop)
	app.DELETE("/:id", h.Discard)

	a.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
