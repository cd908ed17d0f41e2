package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"stock-valuation-pro/internal/config"
	"stock-valuation-pro/internal/quote"
	"stock-valuation-pro/internal/server"
	"stock-valuation-pro/internal/storage"
)

func main() {
	// A missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()
	cfg := config.Load()

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open sqlite")
	}
	defer db.Close()
	log.Info().Str("path", cfg.DBPath).Msg("db: opened sqlite")
	if err := storage.InitSchema(db); err != nil {
		log.Fatal().Err(err).Msg("failed to init schema")
	}
	log.Info().Msg("db: schema ensured (analyze_requests table)")

	yahoo := quote.NewYahooClient(cfg.YahooBaseURL)
	fetcher := quote.NewFetcher(yahoo)
	cache := quote.NewCache(fetcher, cfg.SharedCacheTTL)

	// Expired cache entries pile up slowly, sweep them hourly.
	go func() {
		for range time.Tick(time.Hour) {
			cache.Prune()
		}
	}()

	srv := server.New(&cfg, cache, storage.NewStore(db))
	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Int("users", len(cfg.Users)).Msg("http: listening")
	if err := srv.ListenAndServe(addr); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
