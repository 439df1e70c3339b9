package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/agrilink/marketplace/internal/config"
	"github.com/agrilink/marketplace/internal/es"
	"github.com/agrilink/marketplace/internal/events"
	"github.com/agrilink/marketplace/internal/httpserver"
	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
	"github.com/agrilink/marketplace/internal/service"
	"github.com/agrilink/marketplace/internal/userlock"
	"github.com/agrilink/marketplace/pkg/db"
)

const productIndex = "products"

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET")

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	gormDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := models.AutoMigrate(gormDB); err != nil {
		log.Fatalf("migration: %v", err)
	}

	var publisher events.Publisher = events.Noop{}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers)
		publisher = kafkaPub
	} else {
		logger.Warn("KAFKA_BROKERS not set, events disabled")
	}

	var indexer service.Indexer
	var searchHandler *httpserver.SearchHTTP
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
		indexer = es.NewProductIndexer(esClient, productIndex)
		searchHandler = &httpserver.SearchHTTP{Svc: service.NewSearchService(esClient, productIndex)}
	} else {
		logger.Warn("ES_URL not set, search disabled")
	}

	r := repo.New(gormDB)
	locks := userlock.New()

	deps := httpserver.Deps{
		AuthHandler:    &httpserver.AuthHTTP{Svc: service.NewAuthService(r, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)},
		ProductHandler: &httpserver.ProductHTTP{Svc: service.NewCatalogService(r, publisher, indexer)},
		CartHandler:    &httpserver.CartHTTP{Svc: service.NewCartService(r, locks, publisher)},
		OrderHandler:   &httpserver.OrderHTTP{Svc: service.NewOrderService(r, locks, publisher)},
		SearchHandler:  searchHandler,
		JWTSecret:      cfg.JWTAccessSecret,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), httpserver.RequestLogger(logger))

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
