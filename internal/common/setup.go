package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"group-wager-go/internal/api"
	"group-wager-go/internal/database"
	"group-wager-go/internal/events"
	"group-wager-go/internal/formance"
	"group-wager-go/internal/metrics"
	"group-wager-go/internal/models"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService    *database.Service
	WagerService *api.WagerService
	Publisher    *events.MultiPublisher
	Mirror       *formance.Mirror
	Metrics      *metrics.Collectors
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database, connects every configured event
// sink and builds the wager service on top. reg may be nil for one-shot
// tools that export no metrics.
func InitializeServices(ctx context.Context, cfg *models.Config, reg prometheus.Registerer) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService, Publisher: events.NewMultiPublisher()}

	if cfg.Events.KafkaBrokers != "" {
		zap.L().Info("Publishing ledger events to Kafka",
			zap.String("brokers", cfg.Events.KafkaBrokers),
			zap.String("topic", cfg.Events.KafkaTopic))
		writer := events.NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		services.Publisher.Add("kafka", events.NewKafkaPublisher(writer, cfg.Events.KafkaTopic))
	}

	if cfg.Events.RedisAddr != "" {
		client, err := events.ConnectRedis(ctx, cfg.Events.RedisAddr)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Publisher.Add("redis", events.NewRedisPublisher(client, cfg.Events.RedisChannelPrefix))
	}

	if cfg.Formance.Enabled() {
		mirror, err := formance.NewMirror(ctx, cfg.Formance, cfg.Settlement.MoneyScale)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to initialize formance mirror: %w", err)
		}
		services.Mirror = mirror
		services.Publisher.Add("formance", mirror)
	}

	if reg != nil {
		services.Metrics = metrics.New(reg)
	}

	services.WagerService = api.NewWagerService(dbService, cfg.Settlement, services.Publisher, services.Metrics)
	if err := services.WagerService.EnsureFeeAccount(ctx); err != nil {
		services.Close()
		return nil, err
	}

	zap.L().Info("Services initialized",
		zap.Int("event_sinks", services.Publisher.Len()),
		zap.String("fee_rate", cfg.Settlement.FeeRate.String()),
		zap.String("fee_account", cfg.Settlement.FeeAccountId))

	return services, nil
}

func (cs *Services) Close() {
	if cs.Publisher != nil {
		if err := cs.Publisher.Close(); err != nil {
			zap.L().Warn("Failed to close event publishers", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
