package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
)

type routeHandlers struct {
	timetables *handler.TimetableHandler
	conflicts  *handler.ConflictHandler
	exports    *handler.ExportHandler
	batches    *handler.BatchHandler
}

func registerTimetableRoutes(api *gin.RouterGroup, h routeHandlers, logr *zap.Logger) {
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	planners := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	audit := func(action string) gin.HandlerFunc {
		return internalmiddleware.Audit(logr, action)
	}

	timetables := api.Group("/timetables")
	timetables.POST("/generate", admin, audit("timetable.generate"), h.timetables.Generate)
	timetables.POST("/simulate", planners, h.timetables.Simulate)
	timetables.POST("/scenarios", planners, h.timetables.Scenario)
	timetables.POST("/batch", admin, audit("timetable.batch"), h.batches.Submit)
	timetables.GET("/batch/:jobId", admin, h.batches.Status)

	timetables.GET("", h.timetables.List)
	timetables.GET("/:id", h.timetables.Get)
	timetables.GET("/:id/slots", h.timetables.Slots)
	timetables.PUT("/:id/slots", admin, audit("timetable.edit"), h.timetables.UpdateSlots)
	timetables.DELETE("/:id", admin, audit("timetable.delete"), h.timetables.Delete)
	timetables.POST("/:id/publish", admin, audit("timetable.publish"), h.timetables.Publish)

	timetables.GET("/:id/conflicts", h.conflicts.Detect)
	timetables.POST("/:id/resolve", admin, audit("timetable.resolve"), h.conflicts.Resolve)
	timetables.GET("/:id/export", h.exports.Export)
}
