package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Skufu/thyronet/internal/dataset"
	"github.com/Skufu/thyronet/internal/logging"
	"github.com/Skufu/thyronet/internal/metrics"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const serviceName = "thyronet"

type Config struct {
	Port         string
	Env          string
	LogLevel     string
	MaxBodyBytes int64
	StaticDir    string

	DatabaseURL string
	EnableDB    bool

	DatasetURL          string
	DatasetSource       string
	DatasetTable        string
	DatasetFetchTimeout time.Duration
	DatasetFetchRetries int

	DatasetCache    string
	DatasetCacheTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	JitterSeed      int64
	JitterAmplitude float64

	Batch thyroid.BatchConfig
}

func main() {
	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(serviceName, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *Config) error {
	checks := map[string]HealthChecker{"db": nil, "cache": nil}

	var pool *pgxpool.Pool
	if cfg.EnableDB {
		var err error
		pool, err = connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()
		checks["db"] = pool
	}

	var source dataset.Source
	switch cfg.DatasetSource {
	case "postgres":
		source = dataset.NewPostgresSource(pool, cfg.DatasetTable)
	default:
		source = dataset.NewHTTPSource(cfg.DatasetURL, cfg.DatasetFetchTimeout, cfg.DatasetFetchRetries)
	}

	if cfg.DatasetCacheTTL > 0 {
		var store dataset.Store = dataset.NewMemoryStore()
		if cfg.DatasetCache == "redis" {
			client, err := dataset.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				return err
			}
			defer client.Close()
			redisStore := dataset.NewRedisStore(client, dataset.DefaultRedisKey)
			checks["cache"] = redisStore
			store = redisStore
		}
		source = dataset.NewCachedSource(source, store, cfg.DatasetCacheTTL)
	}

	m := metrics.New()
	loader := dataset.NewLoader(source, m)

	router := setupRouter(Services{
		Scorer:       thyroid.NewScorer(loader, thyroid.NewJitter(cfg.JitterSeed, cfg.JitterAmplitude)),
		Batch:        thyroid.NewBatchScorer(cfg.Batch),
		Dataset:      loader,
		Metrics:      m,
		Checks:       checks,
		MaxBodyBytes: cfg.MaxBodyBytes,
		StaticRoot:   detectStaticRoot(cfg.StaticDir),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A full batch is paced over tens of seconds.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("port", cfg.Port).
		Str("dataset_source", cfg.DatasetSource).
		Dur("dataset_cache_ttl", cfg.DatasetCacheTTL).
		Msg("server listening")

	return serve(ctx, server)
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("APP_ENV", "production"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StaticDir:     os.Getenv("STATIC_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		EnableDB:      strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		DatasetURL:    getEnv("DATASET_URL", dataset.DefaultURL),
		DatasetSource: strings.ToLower(getEnv("DATASET_SOURCE", "http")),
		DatasetTable:  getEnv("DATASET_TABLE", "thyroid_dataset"),
		DatasetCache:  strings.ToLower(getEnv("DATASET_CACHE", "memory")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var errs []error
	parse := func(key string, fn func(string) error) {
		if v := os.Getenv(key); v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	cfg.MaxBodyBytes = 1 << 20
	cfg.DatasetFetchTimeout = 30 * time.Second
	cfg.DatasetFetchRetries = 3
	cfg.JitterAmplitude = 0.05
	cfg.Batch = thyroid.DefaultBatchConfig()

	parse("MAX_BODY_BYTES", func(v string) (err error) { cfg.MaxBodyBytes, err = strconv.ParseInt(v, 10, 64); return })
	parse("DATASET_FETCH_TIMEOUT", func(v string) (err error) { cfg.DatasetFetchTimeout, err = time.ParseDuration(v); return })
	parse("DATASET_FETCH_RETRIES", func(v string) (err error) { cfg.DatasetFetchRetries, err = strconv.Atoi(v); return })
	parse("DATASET_CACHE_TTL", func(v string) (err error) { cfg.DatasetCacheTTL, err = time.ParseDuration(v); return })
	parse("REDIS_DB", func(v string) (err error) { cfg.RedisDB, err = strconv.Atoi(v); return })
	parse("MODEL_JITTER_SEED", func(v string) (err error) { cfg.JitterSeed, err = strconv.ParseInt(v, 10, 64); return })
	parse("MODEL_JITTER_AMPLITUDE", func(v string) (err error) { cfg.JitterAmplitude, err = strconv.ParseFloat(v, 64); return })
	parse("BATCH_CHUNK_SIZE", func(v string) (err error) { cfg.Batch.ChunkSize, err = strconv.Atoi(v); return })
	parse("BATCH_CHUNK_DELAY", func(v string) (err error) { cfg.Batch.ChunkDelay, err = time.ParseDuration(v); return })
	parse("BATCH_MAX_RECORDS", func(v string) (err error) { cfg.Batch.MaxRecords, err = strconv.Atoi(v); return })
	parse("BATCH_SEED", func(v string) (err error) { cfg.Batch.Seed, err = strconv.ParseInt(v, 10, 64); return })

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true"))
	}
	switch cfg.DatasetSource {
	case "http":
	case "postgres":
		if !cfg.EnableDB {
			errs = append(errs, fmt.Errorf("DATASET_SOURCE=postgres requires ENABLE_DB=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATASET_SOURCE must be http or postgres, got %q", cfg.DatasetSource))
	}
	if cfg.DatasetCache != "memory" && cfg.DatasetCache != "redis" {
		errs = append(errs, fmt.Errorf("DATASET_CACHE must be memory or redis, got %q", cfg.DatasetCache))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// detectStaticRoot returns dir when set, otherwise the nearest of the working
// directory and its two parents that holds an index.html, or "" if none does.
func detectStaticRoot(dir string) string {
	if dir != "" {
		return dir
	}

	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
