package api

import (
	"go-sales-etl/internal/api/handler"
	"go-sales-etl/pkg/router"
)

// RegisterRoutes mounts the run endpoints on the router.
func RegisterRoutes(r *router.Router, h *handler.RunHandler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/*/events", h.GetRunEvents)
	r.GET("/api/v1/runs/*/rejections", h.GetRunRejections)
	r.GET("/api/v1/summary", h.GetSummary)
}
