package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/healix-ai/backend/pkg/common/config"
	"github.com/healix-ai/backend/pkg/common/database"
	"github.com/healix-ai/backend/pkg/common/kafka"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/healix-ai/backend/pkg/gateway/middleware"
	"github.com/healix-ai/backend/pkg/ingestion"
	"github.com/healix-ai/backend/pkg/insights"
	"github.com/healix-ai/backend/pkg/normalizer"
	"github.com/healix-ai/backend/pkg/observability/metrics"
	"github.com/healix-ai/backend/pkg/records"
	"github.com/healix-ai/backend/pkg/serving"
	"github.com/healix-ai/backend/pkg/serving/predictor"
)

func main() {
	cfg, err := config.LoadFile("")
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel)

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := records.NewRepository(db)
	runRepo := ingestion.NewRunRepository(db)
	predictionRepo := serving.NewRepository(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate records")
	}
	if err := runRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate ingestion runs")
	}

	var cache insights.Cache
	if client := database.GetRedis(cfg); client != nil {
		cache = insights.NewRedisCache(client, cfg.InsightsCacheTTL)
		defer database.CloseRedis()
	}
	insightSvc := insights.NewService(store, cache)

	var publisher ingestion.Publisher
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaIngestTopic)
		defer producer.Close()
		publisher = producer

		// Keeps the shared report cache clean when healixctl or another
		// process ingests; one consumer per group is enough.
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaIngestTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
				if event.Type != models.EventDatasetIngested {
					return nil
				}
				return insightSvc.Invalidate(ctx)
			})
			if err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("Ingestion event consumer stopped")
			}
		}()
	}

	policy, err := ingestion.ParsePolicy(cfg.IngestFailurePolicy)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid ingestion failure policy")
	}

	// Ingestion invalidates once per batch; direct writes invalidate each time.
	recordSvc := records.NewService(store).WithInvalidator(insightSvc)
	norm := normalizer.New(normalizer.Options{DecimalComma: cfg.NormalizerDecimalComma})
	ingestSvc := ingestion.NewService(records.NewService(store), norm, runRepo, publisher, policy).WithInvalidator(insightSvc)

	pred, err := predictor.Load(cfg.ModelBundlePath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.ModelBundlePath).Warn("Model bundle not loaded, predictions disabled")
	}
	var recorder serving.PredictionRecorder
	if cfg.PredictionLogEnabled {
		if err := predictionRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction log")
		}
		recorder = predictionRepo
	}
	servingSvc := serving.NewService(pred, recorder)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{"database": "ok", "model_loaded": servingSvc.Ready()}
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	records.NewHTTPHandler(recordSvc).Register(api)
	ingestion.NewHTTPHandler(ingestSvc, cfg.MaxRequestBody).Register(api)
	insights.NewHTTPHandler(insightSvc).Register(api)
	serving.NewHTTPHandler(servingSvc).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":          cfg.ServerHost,
			"port":          cfg.ServerPort,
			"policy":        policy,
			"model_version": pred.Version(),
		}).Info("Healix API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down Healix API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Healix API stopped")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
