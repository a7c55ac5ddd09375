package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/cravings/internal/cache"
	"github.com/Skotchmaster/cravings/internal/events"
	"github.com/Skotchmaster/cravings/internal/httpserver"
	"github.com/Skotchmaster/cravings/internal/middleware/csrf"
	"github.com/Skotchmaster/cravings/internal/repo"
	"github.com/Skotchmaster/cravings/internal/search"
	"github.com/Skotchmaster/cravings/internal/service"
	"github.com/Skotchmaster/cravings/pkg/authclient"
	"github.com/Skotchmaster/cravings/pkg/config"
	"github.com/Skotchmaster/cravings/pkg/db"
	"github.com/Skotchmaster/cravings/pkg/logging"
	loggingmw "github.com/Skotchmaster/cravings/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Error("db_init_error", "error", err)
		os.Exit(1)
	}
	if cfg.AutoMigrate {
		if err := repo.Migrate(gdb); err != nil {
			logger.Error("db_migrate_error", "error", err)
			os.Exit(1)
		}
	}

	gormRepo := &repo.GormRepo{DB: gdb}
	checks := []httpserver.Check{
		{Name: "postgres", Ping: func(ctx context.Context) error { return db.Ping(ctx, gdb) }},
	}

	catalogService := &service.CatalogService{Repo: gormRepo}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		menuCache := cache.NewMenuCache(rdb, cfg.ServiceName, cfg.MenuCacheTTL)
		catalogService.Cache = menuCache
		checks = append(checks, httpserver.Check{Name: "redis", Ping: menuCache.Ping})
		logger.Info("menu_cache_enabled", "addr", cfg.RedisAddr, "ttl", cfg.MenuCacheTTL.String())
	}

	if cfg.ESURL != "" {
		es, err := search.NewClient(search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			logger.Error("es_init_error", "error", err)
			os.Exit(1)
		}
		menuIndex := search.NewMenuIndex(es, search.DefaultMenuIndex)
		catalogService.Index = menuIndex
		checks = append(checks, httpserver.Check{Name: "elasticsearch", Ping: menuIndex.Ping})
		logger.Info("menu_search_enabled", "url", cfg.ESURL)
	}

	authClient := authclient.NewClient(cfg.AuthHTTPURL)
	orderService := &service.OrderService{Repo: gormRepo, Directory: authClient}

	var producer *events.Producer
	var consumer *events.UserEventsConsumer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(events.NewWriter(cfg.KafkaBrokers, cfg.OrderEventsTopic))
		orderService.Events = producer

		consumer = &events.UserEventsConsumer{
			Reader: events.NewReader(cfg.KafkaBrokers, cfg.UserEventsTopic, cfg.ServiceName),
			Orders: orderService,
			Log:    logger.With("component", "user_events"),
		}
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpserver.HTTPErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.Secure(), middleware.CORS())
	e.Use(csrf.Middleware(csrf.Config{Secure: cfg.SecureCookies}))

	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalogService},
		CartHandler:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: gormRepo}},
		OrderHandler:   &httpserver.OrderHTTP{Svc: orderService},
		UserHandler:    &httpserver.UserHTTP{Identity: authClient},
		JWTSecret:      cfg.JWTAccessSecret,
		Checks:         checks,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("user_events_consumer_error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("http_server_starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_error", "error", err)
	}

	wg.Wait()
	if consumer != nil {
		if err := consumer.Reader.Close(); err != nil {
			logger.Error("kafka_reader_close_error", "error", err)
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown complete")
}
