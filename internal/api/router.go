// Package api exposes the prediction service and the form frontend over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/medpredict/internal/predictor"
	"github.com/Skufu/medpredict/internal/store"
)

// Predictor is the part of *predictor.Service the handlers use.
type Predictor interface {
	Predict(features predictor.FeatureVector) (predictor.Prediction, error)
	Ready() bool
	LoadError() error
}

type Options struct {
	// History is optional; nil disables recording and /api/predictions.
	History    store.Recorder
	Logger     *zap.Logger
	StaticRoot string
	MaxBody    int64
}

type handler struct {
	predictor Predictor
	history   store.Recorder
	logger    *zap.Logger
}

func NewRouter(p Predictor, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1MB
	}

	h := &handler{predictor: p, history: opts.History, logger: logger}

	router := gin.New()
	router.Use(
		requestLogger(logger),
		gin.Recovery(),
		limitBodySize(maxBody),
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}),
	)

	if opts.StaticRoot != "" {
		router.Static("/static", opts.StaticRoot)
		router.StaticFile("/", filepath.Join(opts.StaticRoot, "index.html"))
		router.StaticFile("/styles.css", filepath.Join(opts.StaticRoot, "styles.css"))
		router.StaticFile("/app.js", filepath.Join(opts.StaticRoot, "app.js"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.readyz)

	api := router.Group("/api")
	{
		api.GET("/schema", h.schema)
		api.GET("/status", h.status)
		api.POST("/predict", h.predict)
		api.GET("/predictions", h.recent)
	}

	return router
}

func (h *handler) readyz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "model": "loaded", "history": "disabled"}

	if !h.predictor.Ready() {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["model"] = fmt.Sprintf("unavailable: %v", h.predictor.LoadError())
	}

	if h.history != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body["history"] = "ok"
		if err := h.history.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["history"] = fmt.Sprintf("unhealthy: %v", err)
		}
	}

	c.JSON(status, body)
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
