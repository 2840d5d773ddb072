/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Archive backend for raw pricing API responses.
type ArchiveBackend string

const (
	ArchiveNone       ArchiveBackend = "none"
	ArchiveFilesystem ArchiveBackend = "fs"
	ArchiveS3         ArchiveBackend = "s3"
)

// DefaultTaxiAPIURL is the ride-pricing endpoint sampled by default.
const DefaultTaxiAPIURL = "https://taxi-routeinfo.taxi.yandex.net/taxi_info"

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	Timezone      string
	Location      *time.Location

	// Scheduler loop
	SchedulerPollInterval time.Duration
	SchedulerFireWindow   time.Duration
	SchedulerWakeBuffer   time.Duration
	DispatchWorkers       int
	DispatchQueueSize     int
	ExecTimeout           time.Duration

	// Ride-pricing API
	TaxiAPIURL      string
	TaxiAPIClientID string
	TaxiAPIKey      string
	TaxiAPIClasses  string
	TaxiAPIRPS      float64

	// Redis route cache
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS event forwarding, disabled when empty
	NATSURL string

	// Raw response archive
	ArchiveBackend    ArchiveBackend
	ArchiveDir        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // S3-compatible services (MinIO etc.)
	S3UsePathStyle    bool

	CORSAllowedOrigins []string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// LoadWithEnvFile loads variables from path (when it exists) without
// overriding variables already set, then calls Load.
func LoadWithEnvFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"FAREWATCH_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"FAREWATCH_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"FAREWATCH_HTTP_PORT", "PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"FAREWATCH_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"FAREWATCH_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"FAREWATCH_JWT_SIGNING_KEY"}, ""),
		Timezone:      getEnvAny([]string{"FAREWATCH_TIMEZONE", "TZ"}, "Local"),

		SchedulerPollInterval: time.Duration(getEnvIntAny([]string{"FAREWATCH_SCHEDULER_POLL_SECONDS"}, 60)) * time.Second,
		SchedulerFireWindow:   time.Duration(getEnvIntAny([]string{"FAREWATCH_SCHEDULER_FIRE_WINDOW_SECONDS"}, 60)) * time.Second,
		SchedulerWakeBuffer:   time.Duration(getEnvIntAny([]string{"FAREWATCH_SCHEDULER_WAKE_BUFFER_MS"}, 1000)) * time.Millisecond,
		DispatchWorkers:       getEnvIntAny([]string{"FAREWATCH_DISPATCH_WORKERS"}, 1),
		DispatchQueueSize:     getEnvIntAny([]string{"FAREWATCH_DISPATCH_QUEUE_SIZE"}, 256),
		ExecTimeout:           time.Duration(getEnvIntAny([]string{"FAREWATCH_EXEC_TIMEOUT_SECONDS"}, 30)) * time.Second,

		TaxiAPIURL:      getEnvAny([]string{"FAREWATCH_TAXI_API_URL"}, DefaultTaxiAPIURL),
		TaxiAPIClientID: getEnvAny([]string{"FAREWATCH_TAXI_API_CLID", "CLID"}, ""),
		TaxiAPIKey:      getEnvAny([]string{"FAREWATCH_TAXI_API_KEY", "APIKEY"}, ""),
		TaxiAPIClasses:  getEnvAny([]string{"FAREWATCH_TAXI_API_CLASSES"}, "econom,business,comfortplus"),
		TaxiAPIRPS:      getEnvFloatAny([]string{"FAREWATCH_TAXI_API_RPS"}, 5),

		RedisEnabled:  getEnvBoolAny([]string{"FAREWATCH_REDIS_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"FAREWATCH_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"FAREWATCH_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"FAREWATCH_REDIS_DB"}, 0),

		NATSURL: getEnvAny([]string{"FAREWATCH_NATS_URL", "NATS_URL"}, ""),

		ArchiveBackend:    ArchiveBackend(getEnvAny([]string{"FAREWATCH_ARCHIVE_BACKEND"}, string(ArchiveNone))),
		ArchiveDir:        getEnvAny([]string{"FAREWATCH_ARCHIVE_DIR"}, "./archive"),
		S3AccessKeyID:     getEnvAny([]string{"FAREWATCH_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"FAREWATCH_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"FAREWATCH_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"FAREWATCH_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"FAREWATCH_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"FAREWATCH_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		CORSAllowedOrigins: splitList(getEnvAny([]string{"FAREWATCH_CORS_ALLOWED_ORIGINS"}, "*")),

		TracingEnabled:    getEnvBoolAny([]string{"FAREWATCH_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"FAREWATCH_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"FAREWATCH_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("FAREWATCH_DB_DSN must be provided")
	}
	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("FAREWATCH_JWT_SIGNING_KEY must be provided")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid FAREWATCH_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.SchedulerPollInterval <= 0 || cfg.SchedulerFireWindow <= 0 || cfg.SchedulerWakeBuffer <= 0 {
		return nil, fmt.Errorf("scheduler intervals must be positive")
	}
	if cfg.SchedulerPollInterval > cfg.SchedulerFireWindow {
		return nil, fmt.Errorf("FAREWATCH_SCHEDULER_POLL_SECONDS (%s) must not exceed FAREWATCH_SCHEDULER_FIRE_WINDOW_SECONDS (%s)",
			cfg.SchedulerPollInterval, cfg.SchedulerFireWindow)
	}
	if cfg.DispatchWorkers < 0 {
		return nil, fmt.Errorf("FAREWATCH_DISPATCH_WORKERS must not be negative")
	}

	switch cfg.ArchiveBackend {
	case ArchiveNone, ArchiveFilesystem:
	case ArchiveS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("FAREWATCH_S3_BUCKET is required for the s3 archive backend")
		}
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.ArchiveBackend)
	}

	if strings.EqualFold(cfg.Environment, "production") && (cfg.TaxiAPIClientID == "" || cfg.TaxiAPIKey == "") {
		return nil, fmt.Errorf("FAREWATCH_TAXI_API_CLID and FAREWATCH_TAXI_API_KEY are required in production")
	}

	return cfg, nil
}

// HTTPAddr returns the listen address of the admin API.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes":
				return true
			case "false", "0", "no":
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
