package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/api/handlers"
	"github.com/yoockh/yoocv/internal/api/middleware"
	"github.com/yoockh/yoocv/internal/observability"
)

type Deps struct {
	Documents *handlers.DocumentHandler
	Progress  *handlers.ProgressHandler
	Jobs      *handlers.JobHandler
	Admin     *handlers.AdminHandler

	JWT    middleware.JWTOptions
	Logger *logrus.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestLogger(d.Logger), observability.GinMetrics())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT))

	docs := auth.Group("/documents")
	docs.POST("", d.Documents.Upload)
	docs.GET("", d.Documents.List)
	docs.GET("/:id", d.Documents.Get)
	docs.GET("/:id/status", d.Documents.Status)
	docs.GET("/:id/download", d.Documents.Download)
	docs.GET("/:id/versions", d.Documents.Versions)
	docs.POST("/:id/reanalyze", d.Documents.ReAnalyze)
	docs.POST("/:id/edits", d.Documents.ApplyEdits)
	docs.POST("/:id/tailor", d.Documents.Tailor)
	docs.GET("/:id/events", d.Progress.Events)

	jobs := auth.Group("/jobs")
	jobs.POST("/search", d.Jobs.Search)
	jobs.GET("", d.Jobs.List)
	jobs.GET("/:id", d.Jobs.Get)

	// WebSocket
	auth.GET("/ws/documents/:id", d.Progress.WebSocket)

	admin := auth.Group("/admin", middleware.RequireAdmin())
	admin.GET("/documents/:id", d.Admin.GetDocument)
}
