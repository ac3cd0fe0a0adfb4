package config

import (
	"os"
	"strconv"
)

// Config carries the process settings, read from the environment
// (optionally seeded from a .env file by main).
type Config struct {
	ListenAddr  string
	DatabaseURL string // empty = in-memory directory
	RedisURL    string // empty = in-memory ticket store
	Debug       bool
	// PairClasses pairs differing explicit time limits of one game
	// type; see the matchmaking package.
	PairClasses bool
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Debug:       boolenv("DEBUG"),
		PairClasses: boolenv("PAIR_LIMIT_CLASSES"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolenv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
