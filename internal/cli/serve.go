package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"samplecore/internal/archive"
	"samplecore/internal/config"
	"samplecore/internal/core"
	"samplecore/internal/httpapi"
	"samplecore/internal/infra/persistence/memory"
	"samplecore/internal/infra/persistence/postgres"
	"samplecore/internal/infra/persistence/sqlite"
	"samplecore/internal/schema"
	"samplecore/pkg/domain"
)

const shutdownGrace = 10 * time.Second

// NewServeCommand creates the command that runs the HTTP catalog server.
func NewServeCommand(root *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.ConfigPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides config")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	svc := core.NewService(store, schema.MustLoad(),
		core.WithLogger(core.NewZapLogger(logger)),
		core.WithMetrics(metrics),
	)

	var handlerOpts []httpapi.HandlerOption
	handlerOpts = append(handlerOpts, httpapi.WithLogger(core.NewZapLogger(logger)))
	if cfg.Archive.Driver != "" {
		blobs, err := archive.Open(ctx, archive.Options{
			Driver: archive.Driver(cfg.Archive.Driver),
			FSRoot: cfg.Archive.FSRoot,
			S3: archive.S3Config{
				Region:          cfg.Archive.S3.Region,
				Bucket:          cfg.Archive.S3.Bucket,
				Endpoint:        cfg.Archive.S3.Endpoint,
				AccessKeyID:     cfg.Archive.S3.AccessKeyID,
				SecretAccessKey: cfg.Archive.S3.SecretAccessKey,
				PathStyle:       cfg.Archive.S3.PathStyle,
			},
		})
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		handlerOpts = append(handlerOpts, httpapi.WithArchiver(archive.NewHistoryArchiver(svc, blobs)))
		logger.Info("history archive enabled", zap.String("driver", cfg.Archive.Driver))
	}

	router := httpapi.NewHandler(svc, handlerOpts...).Router()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalog server listening", zap.String("addr", cfg.Listen), zap.String("store", cfg.Store.Driver))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (domain.Store, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.NewStore(), func() error { return nil }, nil
	case "sqlite":
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	case "postgres":
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
