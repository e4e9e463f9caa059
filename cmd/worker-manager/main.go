// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"licensure-workers/internal/common/aws"
	"licensure-workers/internal/common/camunda"
	"licensure-workers/internal/common/config"
	"licensure-workers/internal/common/database"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/observability"
	"licensure-workers/internal/providerdata"
	"licensure-workers/pkg/compacts"

	// Ingest workers (1)
	li "licensure-workers/internal/workers/ingest/license-ingest"

	// Purchase workers (1)
	pp "licensure-workers/internal/workers/purchase/provision-privileges"

	// Data access workers (2)
	gp "licensure-workers/internal/workers/data-access/get-provider"
	qp "licensure-workers/internal/workers/data-access/query-providers"

	// Communication workers (1)
	spc "licensure-workers/internal/workers/communication/send-purchase-confirmation"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Load Compact Registry ---
	// Every worker validates references against the registry, so a broken
	// registry file should stop the process before anything is dialed.
	registry, err := compacts.LoadRegistry(cfg.Compacts.RegistryPath)
	if err != nil {
		zapLog.Fatal("compact registry load failed",
			zap.String("path", cfg.Compacts.RegistryPath),
			zap.Error(err),
		)
	}
	zapLog.Info("Compact registry loaded",
		zap.String("path", cfg.Compacts.RegistryPath),
		zap.Int("compacts", len(registry.Compacts)),
	)

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init DynamoDB record store with retry ---
	var store *aws.DynamoDBClient
	err = retryWithBackoff(func() error {
		var err error
		store, err = aws.NewDynamoDBClient(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			return err
		}
		// Verify table access before workers start taking jobs
		return store.Ping(ctx, cfg.AWS.ProviderTable)
	}, 15, 2*time.Second, zapLog, "DynamoDB connection")

	if err != nil {
		zapLog.Fatal("dynamodb failed after retries", zap.Error(err))
	}
	zapLog.Info("DynamoDB connected successfully", zap.String("table", cfg.AWS.ProviderTable))

	data, err := providerdata.NewClient(store.API(), providerdata.ClientConfig{
		TableName:         cfg.AWS.ProviderTable,
		NameIndexName:     cfg.AWS.ProvidersByNameIndex,
		ReferenceTimezone: cfg.Selection.ReferenceTimezone,
		MaxQueryCalls:     cfg.Pagination.MaxQueryCalls,
	}, log)
	if err != nil {
		zapLog.Fatal("provider data client failed", zap.Error(err))
	}

	// --- Init EventBridge ---
	bus, err := aws.NewEventBridgeClient(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		zapLog.Fatal("eventbridge client failed", zap.Error(err))
	}

	// --- Init PostgreSQL audit archive with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Notification Clients ---
	sesClient, err := aws.NewSESClient(ctx, cfg.AWS.Region)
	if err != nil {
		zapLog.Fatal("ses client failed", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
	if err != nil {
		zapLog.Fatal("sns client failed", zap.Error(err))
	}

	zapLog.Info("All external service clients initialized")

	runner := camunda.NewRunner(zeebe.GetClient(), zapLog, obs)

	// --- START: Register ALL 5 Workers ---

	// --- 1. Ingest Workers (1) ---
	if cfg.Workers[li.TaskType].Enabled {
		handler := li.NewHandler(li.LoadConfig(cfg), data, registry, pg.DB, bus.API(), log)
		runner.Start(li.TaskType, cfg.Workers[li.TaskType], handler.Handle)
	}

	// --- 2. Purchase Workers (1) ---
	if cfg.Workers[pp.TaskType].Enabled {
		handler := pp.NewHandler(pp.LoadConfig(cfg), data, registry, bus.API(), log)
		runner.Start(pp.TaskType, cfg.Workers[pp.TaskType], handler.Handle)
	}

	// --- 3. Data Access Workers (2) ---
	if cfg.Workers[qp.TaskType].Enabled {
		handler := qp.NewHandler(qp.LoadConfig(cfg), data, log)
		runner.Start(qp.TaskType, cfg.Workers[qp.TaskType], handler.Handle)
	}

	if cfg.Workers[gp.TaskType].Enabled {
		handler := gp.NewHandler(gp.LoadConfig(cfg), data, redis.Client, log)
		runner.Start(gp.TaskType, cfg.Workers[gp.TaskType], handler.Handle)
	}

	// --- 4. Communication Workers (1) ---
	if cfg.Workers[spc.TaskType].Enabled {
		handler := spc.NewHandler(spc.LoadConfig(cfg), sesClient.API(), snsClient.API(), log)
		runner.Start(spc.TaskType, cfg.Workers[spc.TaskType], handler.Handle)
	}

	// --- END: Register ALL 5 Workers ---

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			// Ready means the broker answers, not just that the process is up.
			if err := zeebe.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"time":   time.Now().Format(time.RFC3339),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	runner.Close()

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
