// Command dispatch-admin serves the exam dispatch administration API backed
// by a hosted PocketBase instance.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mucollegedb/dispatch-admin/pkg/fetcher"
	"github.com/mucollegedb/dispatch-admin/pkg/importer"
	"github.com/mucollegedb/dispatch-admin/pkg/logging"
	"github.com/mucollegedb/dispatch-admin/pkg/notify"
	"github.com/mucollegedb/dispatch-admin/pkg/pocketbase"
	"github.com/mucollegedb/dispatch-admin/pkg/resolver"
	"github.com/mucollegedb/dispatch-admin/pkg/snapshot"
)

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})
	logger := logging.NewLogger("main")

	baseURL := os.Getenv("DA_BASE_URL")
	token := os.Getenv("DA_TOKEN")
	if baseURL == "" || token == "" {
		logger.Fatal().Msg("DA_BASE_URL and DA_TOKEN must be set")
	}

	client, err := pocketbase.New(pocketbase.Config{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 30 * time.Second,
		Retry:   pocketbase.DefaultRetryConfig(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create backend client")
	}

	// Snapshots are optional: without Redis the service just refetches.
	var snapshots *snapshot.Store
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

		ttl := time.Duration(getEnvInt("SNAPSHOT_TTL_HOURS", 24)) * time.Hour
		snapshots = snapshot.NewStore(redisClient, ttl)
	}

	fetch, err := fetcher.New(client, snapshotWriter(snapshots), fetcher.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetcher")
	}

	resolve, err := resolver.New(client, resolver.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create resolver")
	}

	pipeline, err := importer.NewPipeline(resolve, client, importer.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create import pipeline")
	}

	server := NewServer(fetch, resolve, client, snapshotReader(snapshots), pipeline, notify.NewLogNotifier())

	addr := ":" + getEnv("PORT", "8080")
	logger.Info().Str("addr", addr).Msg("Starting dispatch admin server")
	if err := server.Router().Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// snapshotWriter avoids handing the fetcher a non-nil interface holding a
// nil *snapshot.Store.
func snapshotWriter(s *snapshot.Store) fetcher.SnapshotWriter {
	if s == nil {
		return nil
	}
	return s
}

func snapshotReader(s *snapshot.Store) snapshotStore {
	if s == nil {
		return nil
	}
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
