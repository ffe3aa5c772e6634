/*
Package config loads server configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory (optional)
  3. Process environment
  4. Command-line flags (BindFlags)

KEYS:
  PORT               HTTP port (8080)
  DB_PATH            SQLite path, ":memory:" for tests (jaspel.db)
  APP_TIMEZONE       The single local zone for all dates (Asia/Jakarta)
  REDIS_ADDR         Report cache + notification queue; empty disables both
  REDIS_PASSWORD
  REDIS_DB           (0)
  JWT_SECRET         Verifies actor tokens; empty trusts X-Actor-* headers
  RECOMPUTE_CRON     Nightly recompute schedule ("15 1 * * *")
  RECOMPUTE_WORKERS  Worker pool size (4)
  SCHEDULER_ENABLED  (true)
  REPORT_CACHE_TTL   (15m)
  CORS_ORIGINS       Comma separated (*)
*/
package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/jaspel-engine/generic"
)

type Config struct {
	Port             int
	DBPath           string
	Timezone         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	JWTSecret        string
	RecomputeCron    string
	RecomputeWorkers int
	SchedulerEnabled bool
	ReportCacheTTL   time.Duration
	CORSOrigins      []string
}

// Load reads .env files (default ".env") and the environment. A missing
// .env file is not an error.
func Load(envFiles ...string) Config {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("[Config] No .env file loaded, using process environment")
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() Config {
	return Config{
		Port:             GetEnvInt("PORT", 8080),
		DBPath:           GetEnv("DB_PATH", "jaspel.db"),
		Timezone:         GetEnv("APP_TIMEZONE", "Asia/Jakarta"),
		RedisAddr:        GetEnv("REDIS_ADDR"),
		RedisPassword:    GetEnv("REDIS_PASSWORD"),
		RedisDB:          GetEnvInt("REDIS_DB", 0),
		JWTSecret:        GetEnv("JWT_SECRET"),
		RecomputeCron:    GetEnv("RECOMPUTE_CRON", "15 1 * * *"),
		RecomputeWorkers: GetEnvInt("RECOMPUTE_WORKERS", 4),
		SchedulerEnabled: GetEnvBool("SCHEDULER_ENABLED", true),
		ReportCacheTTL:   GetEnvDuration("REPORT_CACHE_TTL", 15*time.Minute),
		CORSOrigins:      splitList(GetEnv("CORS_ORIGINS", "*")),
	}
}

// BindFlags registers flags that override the loaded values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.Timezone, "tz", c.Timezone, "IANA time zone for all dates")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address (empty disables cache and queue)")
	fs.StringVar(&c.RecomputeCron, "recompute-cron", c.RecomputeCron, "Cron spec of the nightly recompute")
	fs.IntVar(&c.RecomputeWorkers, "recompute-workers", c.RecomputeWorkers, "Recompute worker pool size")
	fs.BoolVar(&c.SchedulerEnabled, "scheduler", c.SchedulerEnabled, "Run the nightly recompute")
}

// Clock returns the clock bound to the configured zone.
func (c Config) Clock() (*generic.LocalClock, error) {
	return generic.NewLocalClock(c.Timezone)
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(GetEnv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(GetEnv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(GetEnv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
