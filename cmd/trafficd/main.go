// Command trafficd keeps a road tile dataset's traffic overlays live: it
// subscribes to a Redis feed of speed updates, writes them into the
// mapped overlays and clears tiles the feed has gone quiet on. With
// AZURE_* set it syncs the dataset archives from blob storage first.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kinkard/roadtiles"
	"github.com/kinkard/roadtiles/feed"
	"github.com/kinkard/roadtiles/fetch"
)

type config struct {
	GraphPath   string
	TrafficPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FeedChannel   string

	StaleAfter    time.Duration
	SweepInterval time.Duration

	AzureEndpoint    string
	AzureContainer   string
	AzureGraphBlob   string
	AzureTrafficBlob string

	LogLevel zap.AtomicLevel
}

func loadConfig() (config, error) {
	cfg := config{
		GraphPath:   os.Getenv("TILES_GRAPH"),
		TrafficPath: os.Getenv("TILES_TRAFFIC"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		FeedChannel:   getEnv("FEED_CHANNEL", "traffic:updates"),

		StaleAfter:    getDurationEnv("STALE_AFTER", 10*time.Minute),
		SweepInterval: getDurationEnv("SWEEP_INTERVAL", time.Minute),

		AzureEndpoint:    os.Getenv("AZURE_ENDPOINT"),
		AzureContainer:   os.Getenv("AZURE_CONTAINER"),
		AzureGraphBlob:   getEnv("AZURE_GRAPH_BLOB", "tiles.tar"),
		AzureTrafficBlob: getEnv("AZURE_TRAFFIC_BLOB", "traffic.tar"),

		LogLevel: getLevelEnv("LOG_LEVEL", zapcore.InfoLevel),
	}
	if cfg.GraphPath == "" {
		return cfg, fmt.Errorf("TILES_GRAPH environment variable is required")
	}
	if cfg.TrafficPath == "" {
		return cfg, fmt.Errorf("TILES_TRAFFIC environment variable is required")
	}
	return cfg, nil
}

func main() {
	// A .env file is optional; the process environment wins either way.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "trafficd:", err)
		os.Exit(1)
	}

	logCfg := zap.NewProductionConfig()
	logCfg.Level = cfg.LogLevel
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "trafficd:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AzureEndpoint != "" && cfg.AzureContainer != "" {
		if err := syncDataset(ctx, cfg, logger); err != nil {
			logger.Fatal("dataset sync failed", zap.Error(err))
		}
	}

	ts, err := roadtiles.Open(roadtiles.Dataset{
		GraphPath:   cfg.GraphPath,
		TrafficPath: cfg.TrafficPath,
	}, roadtiles.WithLogger(logger))
	if err != nil {
		logger.Fatal("dataset open failed", zap.Error(err))
	}
	defer ts.Close()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	updater := feed.NewUpdater(ts, feed.WithLogger(logger))
	defer updater.Close()

	go sweepLoop(ctx, updater, cfg, logger)

	logger.Info("trafficd running",
		zap.String("graph", cfg.GraphPath),
		zap.String("traffic", cfg.TrafficPath),
		zap.String("channel", cfg.FeedChannel),
		zap.Int("tiles", len(ts.Tiles())),
		zap.Duration("stale_after", cfg.StaleAfter))

	if err := updater.Run(ctx, client, cfg.FeedChannel); err != nil {
		logger.Fatal("feed loop failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func sweepLoop(ctx context.Context, updater *feed.Updater, cfg config, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleared := updater.SweepStale(cfg.StaleAfter)
			applied, rejected := updater.Stats()
			logger.Info("sweep tick",
				zap.Int("cleared", cleared),
				zap.Uint64("applied", applied),
				zap.Uint64("rejected", rejected))
		}
	}
}

func syncDataset(ctx context.Context, cfg config, logger *zap.Logger) error {
	client, err := fetch.NewAzureClient(cfg.AzureEndpoint)
	if err != nil {
		return err
	}
	if err := fetch.FromAzure(ctx, client, cfg.AzureContainer, cfg.AzureGraphBlob,
		cfg.GraphPath, fetch.WithLogger(logger)); err != nil {
		return err
	}
	return fetch.FromAzure(ctx, client, cfg.AzureContainer, cfg.AzureTrafficBlob,
		cfg.TrafficPath, fetch.WithLogger(logger))
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getLevelEnv(key string, defaultVal zapcore.Level) zap.AtomicLevel {
	if v := os.Getenv(key); v != "" {
		if level, err := zap.ParseAtomicLevel(v); err == nil {
			return level
		}
	}
	return zap.NewAtomicLevelAt(defaultVal)
}
