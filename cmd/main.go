package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValeryMukhin1712/tournaments-sub001/config"
	"github.com/ValeryMukhin1712/tournaments-sub001/db"
	"github.com/ValeryMukhin1712/tournaments-sub001/events"
	"github.com/ValeryMukhin1712/tournaments-sub001/handlers"
	"github.com/ValeryMukhin1712/tournaments-sub001/live"
	"github.com/ValeryMukhin1712/tournaments-sub001/metrics"
	"github.com/ValeryMukhin1712/tournaments-sub001/repositories"
	api "github.com/ValeryMukhin1712/tournaments-sub001/routes"
	"github.com/ValeryMukhin1712/tournaments-sub001/services"
	"github.com/ValeryMukhin1712/tournaments-sub001/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Схема базы создаётся миграциями снаружи; здесь только сверяем версию.
	if err := db.CheckSchemaVersion(context.Background(), dbConn, cfg.MinSchemaVersion); err != nil {
		logger.Error("schema version check failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("schema version check passed", slog.Int("min_version", cfg.MinSchemaVersion))

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Метрики
	registry := prometheus.NewRegistry()
	metricsService := metrics.New(registry)

	// Публикация событий завершения матчей (опционально)
	var notifier services.CompletionNotifier
	if cfg.AMQPURL != "" {
		publisher := events.NewPublisher(cfg.AMQPURL, logger)
		defer publisher.Close()
		notifier = publisher
		logger.Info("AMQP publisher initialized")
	} else {
		logger.Info("AMQP_URL not set, match completion events disabled")
	}

	// Архивация финальных протоколов в Cloudflare R2 (опционально)
	var archiver services.ProtocolArchiver
	if cfg.R2Configured() {
		uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewProtocolArchiver(uploader, logger)
		logger.Info("Cloudflare R2 protocol archiver initialized")
	} else {
		logger.Info("R2 credentials not set, protocol archiving disabled")
	}

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	rallyRepo := repositories.NewPostgresRallyRepository(dbConn)
	matchLogRepo := repositories.NewPostgresMatchLogRepository(dbConn)
	standingRepo := repositories.NewPostgresTournamentStandingRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	tournamentService := services.NewTournamentService(tournamentRepo, participantRepo)
	matchService := services.NewMatchService(matchRepo, tournamentRepo, matchLogRepo)
	standingService := services.NewStandingService(tournamentRepo, participantRepo, matchRepo, standingRepo, logger)
	scoringService := services.NewScoringService(
		dbConn,
		matchRepo,
		tournamentRepo,
		rallyRepo,
		matchLogRepo,
		standingService,
		notifier,
		wsHub,
		archiver,
		metricsService,
		logger,
	)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	matchHandler := handlers.NewMatchHandler(matchService)
	scoringHandler := handlers.NewScoringHandler(scoringService)
	standingsHandler := handlers.NewStandingsHandler(standingService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, scoringService, logger)
	healthHandler := handlers.NewHealthHandler(dbConn)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		tournamentHandler,
		matchHandler,
		scoringHandler,
		standingsHandler,
		webSocketHandler,
		healthHandler,
		registry,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
