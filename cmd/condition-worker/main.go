package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/dago-adapters/pkg/llm"
	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/aescanero/dago-node-condition/internal/config"
	"github.com/aescanero/dago-node-condition/internal/metrics"
	"github.com/aescanero/dago-node-condition/internal/router"
	"github.com/aescanero/dago-node-condition/internal/ruleset"
	"github.com/aescanero/dago-node-condition/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting condition worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// LLM client is optional for deterministic-only nodes
	var llmClient ports.LLMClient
	if cfg.LLMEnabled() {
		llmClient, err = initLLMClient(cfg, logger)
		if err != nil {
			logger.Warn("failed to initialize llm client (llm routing will not be available)",
				zap.Error(err),
			)
		} else {
			logger.Info("llm client initialized",
				zap.String("provider", cfg.LLMProvider),
				zap.String("model", cfg.LLMModel),
			)
		}
	} else {
		logger.Warn("llm api key not provided (llm routing will not be available)")
	}

	opts := []router.Option{
		router.WithMaxDepth(cfg.MaxDepth),
		router.WithDefaultModel(cfg.LLMModel),
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(metrics.DefaultNamespace, nil)
		opts = append(opts, router.WithRecorder(collector))
	}

	// Rule sets are validated by a router without a rule source
	validator, err := router.NewRouter(nil, logger.Named("ruleset"), router.WithMaxDepth(cfg.MaxDepth))
	if err != nil {
		logger.Fatal("failed to create rule set validator", zap.Error(err))
	}

	var registry *ruleset.Registry
	var watcher *ruleset.Watcher
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	if cfg.RulesPath != "" {
		registry = ruleset.NewRegistry(validator, logger)
		if collector != nil {
			registry.OnLoad(collector.SetRuleSetsLoaded)
		}
		if err := registry.Load(cfg.RulesPath); err != nil {
			logger.Fatal("failed to load rule sets", zap.String("path", cfg.RulesPath), zap.Error(err))
		}
		opts = append(opts, router.WithRuleSource(registry))

		if cfg.RulesWatch {
			watcher, err = ruleset.NewWatcher(cfg.RulesPath, registry, cfg.RulesDebounce, logger)
			if err != nil {
				logger.Fatal("failed to create rule set watcher", zap.Error(err))
			}
			go func() {
				if err := watcher.Watch(watchCtx); err != nil {
					logger.Error("rule set watcher failed", zap.Error(err))
				}
			}()
		}
	}

	routerInstance, err := router.NewRouter(llmClient, logger, opts...)
	if err != nil {
		logger.Fatal("failed to create router", zap.Error(err))
	}
	logger.Info("router initialized", zap.Int("max_depth", cfg.MaxDepth))

	stateStore := worker.NewRedisStateStore(redisClient, logger)
	w := worker.NewWorker(cfg, redisClient, routerInstance, stateStore, logger)

	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	var metricsHandler http.Handler
	if collector != nil {
		metricsHandler = collector.Handler()
	}
	healthServer := worker.NewHealthServer(cfg.HealthPort, redisClient, metricsHandler, logger)
	if registry != nil {
		healthServer.AddReadinessCheck("rule_sets", func() error {
			if registry.Len() == 0 {
				return fmt.Errorf("no rule sets loaded from %s", cfg.RulesPath)
			}
			return nil
		})
	}
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("condition worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	if err := w.Stop(10 * time.Second); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}

	stopWatch()
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Error("failed to close rule set watcher", zap.Error(err))
		}
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}

	logger.Info("worker stopped gracefully")
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// initLLMClient initializes the LLM client using dago-adapters
func initLLMClient(cfg *config.Config, logger *zap.Logger) (ports.LLMClient, error) {
	return llm.NewClient(&llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Logger:   logger.Named("llm"),
	})
}
