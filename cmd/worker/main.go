package main

import (
	"context"
	"time"

	"medibot/internal/activities"
	"medibot/internal/cache"
	"medibot/internal/config"
	applog "medibot/internal/platform/log"
	"medibot/internal/storage"
	"medibot/internal/workflows"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	applog.Init(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		applog.Fatal("invalid configuration", "error", err)
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		applog.Fatal("dial temporal", "error", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		applog.Fatal("connect postgres", "error", err)
	}
	defer db.Close()

	var answerCache *cache.AnswerCache
	if cfg.AnswerCacheTTL > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		answerCache = cache.NewAnswerCache(rdb, cfg.AnswerCacheTTL)
	}

	a := activities.New(cfg, db, answerCache)
	activities.Register(w, a)

	applog.Info("medibot worker listening",
		"temporal", cfg.TemporalAddress,
		"queue", cfg.TemporalTaskQueue,
		"embed_providers", cfg.EmbedProviders,
		"llm_providers", cfg.LLMProviders,
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		applog.Fatal("worker stopped", "error", err)
	}
}
