package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBDSN      string
	LogFile    string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Seed       bool
}

func Load() Config {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	cfg := Config{
		Port:       env("PORT", "3000"),
		DBDSN:      env("DB_DSN", "openmarket.db"), // sqlite file in project root
		LogFile:    os.Getenv("LOG_FILE"),
		JWTSecret:  env("JWT_SECRET", "your-secret-key"),
		AccessTTL:  duration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTTL: duration("REFRESH_TOKEN_TTL", 24*time.Hour),
		Seed:       boolean("SEED", true),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s ACCESS_TOKEN_TTL=%s REFRESH_TOKEN_TTL=%s SEED=%t",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.AccessTTL, cfg.RefreshTTL, cfg.Seed)
	return cfg
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[warn] bad %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[warn] bad %s=%q, using %t", key, v, def)
		return def
	}
	return b
}
