// Package config loads process configuration from the environment, the
// way cmd/netcatalogd's predecessor loaded DB_PATH/PORT/ALLOWED_ORIGINS.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the process needs at
// startup. Per-scan settings (CIDR, port list, intervals) live in the
// store's settings table instead, since operators change those at
// runtime through the API.
type Config struct {
	DBPath         string
	ListenAddr     string
	AllowedOrigins string
	NmapPath       string
	TraceroutePath string
}

// Load reads .env (if present) then the environment, applying the same
// defaults the original server used.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:         getEnv("NETCATALOG_DB_PATH", "./netcatalog.db"),
		ListenAddr:     ":" + getEnv("PORT", "8089"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		NmapPath:       getEnv("NETCATALOG_NMAP_PATH", "nmap"),
		TraceroutePath: getEnv("NETCATALOG_TRACEROUTE_PATH", "traceroute"),
	}
}

func (c Config) Origins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

