package main

import (
	"net/http"

	"medibot/internal/api"
	"medibot/internal/config"
	applog "medibot/internal/platform/log"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	applog.Init(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		applog.Fatal("invalid configuration", "error", err)
	}

	h := api.NewServer(cfg)
	applog.Info("medibot api listening",
		"addr", cfg.APIAddr,
		"embed_providers", cfg.EmbedProviders,
		"llm_providers", cfg.LLMProviders,
	)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		applog.Fatal("api server stopped", "error", err)
	}
}
