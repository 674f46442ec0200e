// form-sync-service pulls employees and TB/RS submissions from the form
// backend into workdays.
//
// Runs are triggered three ways: a ticker per tenant (FORM_SYNC_INTERVAL
// overrides interval_seconds of the YAML config), Pub/Sub push on
// /pubsub/form-sync, and POST /internal/form-sync/run for operators.
//
// Usage:
//
//	FORM_SYNC_CONFIG=./form-sync.yaml DB_USER=... go run ./cmd/form-sync-service
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/formsync"
	"github.com/montron/pm_backend/middlewares"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/montron/pm_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8081"

func main() {
	port := os.Getenv("FORM_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}
	logger := config.GetLogger()

	cfgPath := os.Getenv("FORM_SYNC_CONFIG")
	if cfgPath == "" {
		cfgPath = "form-sync.yaml"
	}
	cfg, err := formsync.LoadConfig(cfgPath)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "config", "path": cfgPath}).Fatal(err)
	}
	if n := intFromEnv("FORM_SYNC_INTERVAL", 0); n > 0 {
		cfg.IntervalSeconds = n
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var worker atomic.Pointer[formsync.Worker]

	r := gin.New()
	r.Use(middlewares.CorrelationId())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || worker.Load() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/pubsub/form-sync", func(c *gin.Context) {
		formsync.PushHandler(worker.Load(), cfg)(c)
	})
	r.POST("/internal/form-sync/run", middlewares.AuthMiddleware(), func(c *gin.Context) {
		runHandler(c, worker.Load(), cfg)
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !config.EnvBool("SKIP_MIGRATIONS", false) {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	}
	w := formsync.NewWorker(db, logger)
	worker.Store(w)

	var wg sync.WaitGroup
	if !config.EnvBool("FORM_SYNC_DISABLE_SCHEDULE", false) {
		for _, tenant := range cfg.Tenants {
			wg.Add(1)
			go func(t formsync.Tenant) {
				defer wg.Done()
				schedule(sigCtx, w, t, time.Duration(cfg.IntervalSeconds)*time.Second, logger)
			}(tenant)
		}
	}
	logger.WithFields(logrus.Fields{"port": port, "tenants": len(cfg.Tenants)}).Info("form sync service started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
	stopSignals()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// schedule runs one tenant at a fixed interval. Runs of a tenant never overlap.
func schedule(ctx context.Context, worker *formsync.Worker, tenant formsync.Tenant, every time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := worker.Run(ctx, tenant, "", ""); err != nil && ctx.Err() == nil {
			config.LogError(logger, "form-sync-service", "schedule", "run", tenant.CompanyId, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type runRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// runHandler triggers a run for the caller's own company.
func runHandler(c *gin.Context, worker *formsync.Worker, cfg *formsync.Config) {
	companyId, _ := utils.GetCompanyIdFromContext(c.Request.Context())
	tenant, ok := cfg.Tenant(companyId)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "company is not configured for form sync"})
		return
	}
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	stats, err := worker.Run(c.Request.Context(), tenant, strings.TrimSpace(req.From), strings.TrimSpace(req.To))
	var badInput *workflow.BadInputError
	if errors.As(err, &badInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func intFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
