package main

import (
	"io"
	"log"
	"os"

	"openmarket/internal/auth"
	"openmarket/internal/config"
	"openmarket/internal/http/handlers"
	applog "openmarket/internal/log"
	"openmarket/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Seed {
		if err := repos.Seed(db); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	app := handlers.NewApp(handlers.NewDeps(db, tokens))

	applog.Info(nil, "server.start", map[string]any{"port": cfg.Port, "db": cfg.DBDSN})
	log.Fatal(app.Listen(":" + cfg.Port))
}
