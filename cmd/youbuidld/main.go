package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/givestation/youbuidl-sync/internal/config"
	"github.com/givestation/youbuidl-sync/internal/infra/database"
	"github.com/givestation/youbuidl-sync/internal/infra/repository"
	"github.com/givestation/youbuidl-sync/internal/present/rest"
	"github.com/givestation/youbuidl-sync/internal/present/rest/middleware"
	"github.com/givestation/youbuidl-sync/internal/service"
	"github.com/givestation/youbuidl-sync/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config",
			slog.String("error", err.Error()),
			slog.String("path", *configPath),
		)
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server)
	mc := database.NewMemcached(conf.Server)

	signal := service.NewSignalService(rdb)
	auth := service.NewAuthService(conf.Server.AuthWindow)

	commentRepo := repository.NewCommentRepository(db)
	upvoteRepo := repository.NewUpvoteRepository(db)

	commentUsecase := usecase.NewCommentUsecase(commentRepo, signal)
	upvoteUsecase := usecase.NewUpvoteUsecase(upvoteRepo, signal, mc)

	handler := rest.NewHandler(commentUsecase, upvoteUsecase, signal)
	authMiddleware := middleware.NewAuthMiddleware(auth)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("youbuidld"))
	}
	e.Use(authMiddleware.IdentifyViewer)

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTraceProvider(endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("youbuidld"),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down trace provider", slog.String("error", err.Error()))
		}
	}
	return cleanup, nil
}
