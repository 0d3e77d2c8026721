package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"optionflow/config"
	"optionflow/internal/change"
	"optionflow/internal/metrics"
	"optionflow/internal/pipeline"
	"optionflow/internal/store"
	"optionflow/logger"
	"optionflow/reader"
	"optionflow/writer"
)

const defaultConfigPath = "config/config.yml"

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	once := flag.Bool("once", false, "Run a single ingestion cycle and exit")
	flag.Parse()

	path := config.ResolvePath(*configPath, defaultConfigPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Optionflow.Name,
		"version":     cfg.Optionflow.Version,
		"environment": config.AppEnvironment(),
		"config":      path,
	}).Info("starting optionflow")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}
	logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)

	var m *metrics.Metrics
	if addr := cfg.Metrics.Prometheus.Addr; addr != "" {
		m = metrics.NewMetrics()
		go func() {
			if err := m.Serve(ctx, addr); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	refStore, closeStore, err := newReferenceStore(cfg)
	if err != nil {
		log.WithError(err).Error("failed to open reference store")
		os.Exit(1)
	}
	defer closeStore.Close()

	sink, err := newSink(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to create snapshot sink")
		closeStore.Close()
		os.Exit(1)
	}

	p := pipeline.New(
		reader.NewFetcher(cfg.Source),
		change.NewDetector(refStore),
		sink,
		pipeline.Options{
			URLs:            cfg.Source.URLs,
			ConflictRetries: cfg.Schedule.ConflictRetries,
			Metrics:         m,
		},
	)

	if *once || cfg.Schedule.Interval == 0 {
		if _, err := p.RunOnce(ctx); err != nil {
			closeStore.Close()
			os.Exit(1)
		}
		return
	}

	p.Run(ctx, cfg.Schedule.Interval)
	log.Info("shutdown complete")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newReferenceStore(cfg *config.Config) (change.ReferenceStore, io.Closer, error) {
	log := logger.GetLogger().WithComponent("main").WithFields(logger.Fields{
		"backend": cfg.Reference.Backend,
	})

	switch cfg.Reference.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLite(cfg.Reference.SQLite.Path, cfg.Reference.Kind, cfg.Reference.Key)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite reference store")
		return s, s, nil
	case config.BackendRedis:
		s, err := store.NewRedis(store.RedisConfig{
			Addr:     cfg.Reference.Redis.Addr,
			Password: cfg.Reference.Redis.Password,
			DB:       cfg.Reference.Redis.DB,
			Key:      cfg.Reference.Kind + ":" + cfg.Reference.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis reference store")
		return s, s, nil
	default:
		log.Warn("using in-memory reference store; duplicates are only detected within this process")
		return store.NewMemory(), nopCloser{}, nil
	}
}

func newSink(ctx context.Context, cfg *config.Config) (writer.Sink, error) {
	log := logger.GetLogger().WithComponent("main")

	var sinks writer.Multi
	if cfg.Storage.S3.Enabled {
		s, err := writer.NewS3Sink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	} else {
		log.Info("S3 storage disabled; skipping s3 sink")
	}
	if cfg.Storage.Local.Enabled {
		s, err := writer.NewFileSink(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		log.Warn("no storage enabled; accepted snapshots are discarded")
	}
	return sinks, nil
}
