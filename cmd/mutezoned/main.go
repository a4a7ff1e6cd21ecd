package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/mute-zones-service/internal/adapter/bridge"
	httpadapter "github.com/couchcryptid/mute-zones-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/mute-zones-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/mute-zones-service/internal/adapter/mqtt"
	"github.com/couchcryptid/mute-zones-service/internal/adapter/simdevice"
	"github.com/couchcryptid/mute-zones-service/internal/adapter/zonestore"
	"github.com/couchcryptid/mute-zones-service/internal/config"
	"github.com/couchcryptid/mute-zones-service/internal/domain"
	"github.com/couchcryptid/mute-zones-service/internal/observability"
	"github.com/couchcryptid/mute-zones-service/internal/pipeline"
	"github.com/couchcryptid/mute-zones-service/internal/ringer"
)

type fixSource interface {
	pipeline.BatchExtractor
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	device := newDevice(cfg, logger)
	controller := ringer.NewController(device, ringer.NewProbe(device, logger), clockwork.NewRealClock(), cfg.DeviceTimeout, logger, metrics)

	zones, closeZones, err := newZoneStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open zone store", "error", err)
		os.Exit(1)
	}
	defer closeZones()

	source, err := newFixSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open fix source", "error", err)
		os.Exit(1)
	}

	// A nil *Writer must not end up inside the interface.
	var sink pipeline.DecisionSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaDecisionTopic != "" {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
	} else {
		logger.Info("decision publishing disabled")
	}

	serial := pipeline.NewSerial(cfg.BatchSize)
	tracker := pipeline.New(source, zones, controller, serial, sink, logger, metrics, cfg.BatchSize, cfg.DeviceID)
	commands := pipeline.NewCommands(controller, serial, zones, sink, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, tracker, commands, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go serial.Run(ctx)

	// Start fix tracker.
	go func() {
		if err := tracker.Run(ctx); err != nil {
			logger.Error("tracker error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := source.Close(); err != nil {
		logger.Error("fix source close error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func newDevice(cfg *config.Config, logger *slog.Logger) domain.Device {
	if cfg.DeviceBackend == config.DeviceBackendBridge {
		logger.Info("using device bridge", "url", cfg.BridgeURL, "timeout", cfg.DeviceTimeout)
		return bridge.NewClient(cfg.BridgeURL, cfg.DeviceTimeout, logger)
	}
	logger.Info("using simulated device")
	return simdevice.New(domain.PermissionState{
		NotificationPolicy: true,
		WriteSettings:      true,
		PostNotifications:  domain.GrantNotRequired,
	}, logger)
}

func newZoneStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.ZoneSource, func(), error) {
	if cfg.ZoneStore == config.ZoneStoreRedis {
		store := zonestore.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.RedisZoneKey, cfg.DefaultZoneRadius)
		if err := store.Ping(ctx); err != nil {
			// Zones are read per fix, so a store that comes up later is picked up then.
			logger.Warn("redis zone store unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}, nil
	}

	store, err := zonestore.NewFileStore(cfg.ZoneFile, cfg.DefaultZoneRadius, logger)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		if err := store.Watch(ctx); err != nil {
			logger.Error("zone file watch stopped", "error", err)
		}
	}()
	return store, func() {}, nil
}

func newFixSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (fixSource, error) {
	if cfg.FixSource == config.FixSourceMQTT {
		sub := mqttadapter.NewSubscriber(cfg, logger)
		if err := sub.Connect(ctx); err != nil {
			return nil, err
		}
		return sub, nil
	}
	return kafkaadapter.NewReader(cfg, logger), nil
}
