package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config — конфигурация обоих процессов (API и планировщика).
// Значения читаются из переменных окружения; .env подгружается в main.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Name    string
	Version string
	Env     string // local / docker / production
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// DSN в формате go-sql-driver: user:pass@tcp(host:3306)/chat?parseTime=true
	DSN            string
	MigrationsPath string
	PingAttempts   int
	PingInterval   time.Duration
}

type RedisConfig struct {
	Addr string
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiration time.Duration
}

type SchedulerConfig struct {
	TickInterval   time.Duration
	PurgeRetention time.Duration
	SweepStale     time.Duration
	Workers        int
	QueueSize      int
	MaxRetries     int
}

func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "e-love-chat-service"),
			Version: getEnv("APP_VERSION", "0.1.0"),
			Env:     getEnv("ENV", "local"),
		},
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8001"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:            getEnv("DB_DSN", "chat:chat@tcp(localhost:3306)/chat?parseTime=true"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
			PingAttempts:   getEnvInt("DB_PING_ATTEMPTS", 5),
			PingInterval:   getEnvDuration("DB_PING_INTERVAL", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			JWTExpiration: getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			TickInterval:   getEnvDuration("SCHEDULER_TICK", 60*time.Second),
			PurgeRetention: getEnvDuration("PURGE_RETENTION", 30*24*time.Hour),
			SweepStale:     getEnvDuration("SWEEP_STALE_AFTER", 24*time.Hour),
			Workers:        getEnvInt("SCHEDULER_WORKERS", 4),
			QueueSize:      getEnvInt("SCHEDULER_QUEUE_SIZE", 16),
			MaxRetries:     getEnvInt("SCHEDULER_MAX_RETRIES", 2),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("переменная окружения JWT_SECRET не задана")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
