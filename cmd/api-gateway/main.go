package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sns-grievance-api/api/swagger"
	"github.com/noah-isme/sns-grievance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sns-grievance-api/internal/middleware"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/internal/repository"
	"github.com/noah-isme/sns-grievance-api/internal/service"
	"github.com/noah-isme/sns-grievance-api/pkg/cache"
	"github.com/noah-isme/sns-grievance-api/pkg/config"
	"github.com/noah-isme/sns-grievance-api/pkg/database"
	"github.com/noah-isme/sns-grievance-api/pkg/export"
	"github.com/noah-isme/sns-grievance-api/pkg/geocoding"
	"github.com/noah-isme/sns-grievance-api/pkg/jobs"
	"github.com/noah-isme/sns-grievance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sns-grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sns-grievance-api/pkg/middleware/requestid"
	"github.com/noah-isme/sns-grievance-api/pkg/storage"
)

// @title SNS Grievance API
// @version 1.0.0
// @description Complaint intake, lifecycle and geospatial location resolution for the Smart Nagrik Seva portal.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	loc, err := time.LoadLocation(cfg.Complaints.Timezone)
	if err != nil {
		logr.Fatal("invalid complaint timezone", zap.String("timezone", cfg.Complaints.Timezone), zap.Error(err))
	}

	counter, err := complaintCounter(cfg, db, redisClient)
	if err != nil {
		logr.Fatal("failed to configure complaint counter", zap.Error(err))
	}
	allocator := service.NewComplaintNumberAllocator(counter, loc, metricsSvc, logr)

	notificationQueue := jobs.NewQueue("complaint-notifications",
		service.NewNotificationWorker(service.NewLogNotifier(logr), logr).Handle,
		jobs.QueueConfig{
			Workers:    cfg.Notifications.WorkerConcurrency,
			MaxRetries: cfg.Notifications.WorkerRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
	if cfg.Notifications.Enabled {
		notificationQueue.Start(ctx)
		defer notificationQueue.Stop()
	}
	notifications := service.NewNotificationService(notificationQueue, logr, cfg.Notifications.Enabled)

	complaintRepo := repository.NewComplaintRepository(db)
	complaintSvc := service.NewComplaintService(complaintRepo, allocator, validate, logr,
		service.WithSLAPolicy(slaPolicy(cfg.Complaints.SLA)),
		service.WithComplaintEvents(notifications),
		service.WithComplaintMetrics(metricsSvc),
	)

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Geocoder.CacheTTL, logr, redisClient != nil)
	nominatim := geocoding.NewNominatimClient(geocoding.Config{
		BaseURL:       cfg.Geocoder.BaseURL,
		UserAgent:     cfg.Geocoder.UserAgent,
		Email:         cfg.Geocoder.Email,
		Timeout:       cfg.Geocoder.Timeout,
		RatePerSecond: cfg.Geocoder.RatePerSecond,
		Burst:         cfg.Geocoder.Burst,
	}, geocoding.WithLogger(logr))
	geocoder := service.NewCachedGeocoder(nominatim, cacheSvc, cfg.Geocoder.CacheTTL, metricsSvc, logr)
	locationSvc := service.NewLocationService(geocoder, service.LocationServiceConfig{
		Resolver: service.LocationResolverConfig{
			Debounce:        cfg.Geocoder.Debounce,
			MinQueryLength:  cfg.Geocoder.MinQueryLength,
			SuggestionLimit: cfg.Geocoder.SuggestionLimit,
		},
		SessionTTL:    cfg.Locations.SessionTTL,
		SweepInterval: cfg.Locations.SweepInterval,
	}, metricsSvc, logr)
	go locationSvc.Run(ctx)

	evidenceStore, err := storage.NewLocalStorage(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare evidence storage", zap.Error(err))
	}
	evidenceSvc := service.NewEvidenceService(evidenceStore,
		storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL),
		service.EvidenceServiceConfig{
			MaxFileSize:  cfg.Evidence.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Evidence.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		}, logr)

	var csvOpts []export.CSVOption
	if cfg.Exports.ExcelBOM {
		csvOpts = append(csvOpts, export.WithByteOrderMark())
	}
	exporter := service.NewExportService(complaintRepo, service.ExportConfig{MaxRows: cfg.Exports.MaxRows, Location: loc}, logr,
		export.NewCSVExporter(csvOpts...), export.NewPDFExporter())

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	complaintHandler := handler.NewComplaintHandler(complaintSvc, locationSvc, exporter)
	locationHandler := handler.NewLocationHandler(locationSvc, cacheSvc, validate)
	evidenceHandler := handler.NewEvidenceHandler(evidenceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
		"redis":    cacheRepo,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Evidence.MaxFileSizeBytes + 1<<20

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	// Signed links carry their own authorisation.
	api.GET("/evidence/download", evidenceHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokenSvc))

	citizenOnly := internalmiddleware.RequireRoles(models.RoleCitizen)
	staffOnly := internalmiddleware.RequireStaff()

	complaints := secured.Group("/complaints")
	complaints.POST("", citizenOnly, complaintHandler.Create)
	complaints.GET("", complaintHandler.List)
	complaints.GET("/stats", complaintHandler.Stats)
	if cfg.Exports.Enabled {
		complaints.GET("/export", staffOnly, complaintHandler.Export)
	}
	complaints.GET("/:id", complaintHandler.Get)
	complaints.PATCH("/:id/status", staffOnly, complaintHandler.Transition)
	complaints.PATCH("/:id/priority", staffOnly, complaintHandler.UpdatePriority)
	complaints.POST("/:id/confirm", citizenOnly, complaintHandler.Confirm)

	locations := secured.Group("/locations")
	locations.POST("/reverse", locationHandler.Reverse)
	locations.GET("/search", locationHandler.Search)
	locations.POST("/select", locationHandler.Select)
	locations.POST("/device", locationHandler.Device)
	locations.GET("/current", locationHandler.Current)
	locations.DELETE("/current", locationHandler.Reset)
	locations.DELETE("/cache", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), locationHandler.FlushCache)

	evidence := secured.Group("/evidence")
	evidence.POST("", evidenceHandler.Upload)
	evidence.GET("/link", evidenceHandler.Link)

	secured.GET("/ops/metrics", staffOnly, metricsHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func complaintCounter(cfg *config.Config, db *sqlx.DB, client *redis.Client) (service.ComplaintCounter, error) {
	switch cfg.Complaints.CounterBackend {
	case "", config.CounterBackendPostgres:
		return repository.NewComplaintCounterRepository(db), nil
	case config.CounterBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("counter backend %q requires REDIS_ENABLED and a reachable redis", config.CounterBackendRedis)
		}
		return repository.NewRedisComplaintCounter(client), nil
	default:
		return nil, fmt.Errorf("unknown counter backend %q", cfg.Complaints.CounterBackend)
	}
}

func slaPolicy(raw map[string]time.Duration) service.SLAPolicy {
	policy := service.SLAPolicy{}
	for priority, window := range raw {
		p := models.ComplaintPriority(strings.ToUpper(priority))
		if p.Valid() && window > 0 {
			policy[p] = window
		}
	}
	return policy
}
