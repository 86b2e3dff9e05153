package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/Skufu/thyronet/internal/logging"
	"github.com/Skufu/thyronet/internal/metrics"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services are the collaborators the router dispatches to.
type Services struct {
	Scorer  *thyroid.Scorer
	Batch   *thyroid.BatchScorer
	Dataset thyroid.RowLoader
	Metrics *metrics.Metrics

	// Checks maps a dependency name to its health check; nil means disabled.
	Checks map[string]HealthChecker

	MaxBodyBytes int64
	StaticRoot   string
}

func setupRouter(svc Services) *gin.Engine {
	if svc.MaxBodyBytes <= 0 {
		svc.MaxBodyBytes = 1 << 20
	}

	router := gin.New()
	router.Use(
		logging.RequestID(),
		logging.Middleware(),
		gin.Recovery(),
		limitBodySize(svc.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", logging.RequestIDHeader},
			ExposeHeaders: []string{logging.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	if svc.StaticRoot != "" {
		router.Static("/static", svc.StaticRoot)
		router.StaticFile("/", filepath.Join(svc.StaticRoot, "index.html"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", readiness(svc.Checks))

	if svc.Metrics != nil {
		router.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	h := &predictionHandler{
		scorer:  svc.Scorer,
		batch:   svc.Batch,
		dataset: svc.Dataset,
		metrics: svc.Metrics,
	}

	api := router.Group("/api")
	{
		api.POST("/predict", h.Predict)
		api.POST("/predict/batch", h.PredictBatch)
		api.GET("/dataset/summary", h.DatasetSummary)
	}

	return router
}

func readiness(checks map[string]HealthChecker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok"}
		code := http.StatusOK

		for _, name := range names {
			checker := checks[name]
			if checker == nil {
				body[name] = "disabled"
				continue
			}
			if err := checker.Ping(ctx); err != nil {
				body[name] = fmt.Sprintf("unhealthy: %v", err)
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}

		c.JSON(code, body)
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
