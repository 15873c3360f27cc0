package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Skufu/medpredict/internal/api"
	"github.com/Skufu/medpredict/internal/logging"
	"github.com/Skufu/medpredict/internal/predictor"
	"github.com/Skufu/medpredict/internal/store"
)

type Config struct {
	Port          string
	ScalerPath    string
	ModelPath     string
	CacheSize     int
	HistoryDriver string // none|postgres|sqlite
	DatabaseURL   string
	SQLitePath    string
	Log           logging.Options
}

func main() {
	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	svc := predictor.New(
		predictor.FileLoader{ScalerPath: cfg.ScalerPath, ModelPath: cfg.ModelPath},
		predictor.WithCache(cfg.CacheSize),
	)
	if svc.Load() {
		logger.Info("model artifacts loaded",
			zap.String("scaler", cfg.ScalerPath),
			zap.String("model", cfg.ModelPath),
		)
	} else {
		// keep serving: the form shows the diagnostic and disables submit
		logger.Error("model artifacts failed to load; predictions disabled", zap.Error(svc.LoadError()))
	}

	ctx := context.Background()
	history, err := openHistory(ctx, cfg)
	if err != nil {
		logger.Fatal("prediction history unavailable", zap.Error(err))
	}
	if history != nil {
		defer history.Close()
		logger.Info("prediction history enabled", zap.String("driver", cfg.HistoryDriver))
	}

	router := api.NewRouter(svc, api.Options{
		History:    history,
		Logger:     logger,
		StaticRoot: detectStaticRoot(),
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("addr", server.Addr))
	waitForShutdown(server, logger)
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	cacheSize, err := strconv.Atoi(getEnv("PREDICTION_CACHE_SIZE", "256"))
	if err != nil || cacheSize < 0 {
		return nil, fmt.Errorf("PREDICTION_CACHE_SIZE must be a non-negative integer")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		ScalerPath:    getEnv("SCALER_PATH", "scaler.json"),
		ModelPath:     getEnv("MODEL_PATH", "model.json"),
		CacheSize:     cacheSize,
		HistoryDriver: strings.ToLower(getEnv("HISTORY_DRIVER", "none")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getEnv("SQLITE_PATH", "predictions.db"),
		Log: logging.Options{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	switch cfg.HistoryDriver {
	case "none", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when HISTORY_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown HISTORY_DRIVER %q", cfg.HistoryDriver)
	}

	return cfg, nil
}

func openHistory(ctx context.Context, cfg *Config) (store.Recorder, error) {
	switch cfg.HistoryDriver {
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite":
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, nil
	}
}

func waitForShutdown(server *http.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// detectStaticRoot finds the web/ directory from the working directory or
// up to two parents.
func detectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "web"
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		web := filepath.Join(dir, "web")
		if fileExists(filepath.Join(web, "index.html")) {
			return web
		}
	}

	return filepath.Join(startDir, "web")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
