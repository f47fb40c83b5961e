package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"chat-service/internal/config"
	"chat-service/internal/utils"
)

// Connect открывает пул соединений и ждёт готовности базы: пинг повторяется
// PingAttempts раз с интервалом PingInterval. Ни API, ни планировщик не
// стартуют, пока база не ответит.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия пула соединений: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := waitReady(ctx, conn, cfg.PingAttempts, cfg.PingInterval); err != nil {
		conn.Close()
		return nil, err
	}

	utils.LogSuccess("DB", "Соединение с MySQL установлено")
	return conn, nil
}

func waitReady(ctx context.Context, conn *sql.DB, attempts int, interval time.Duration) error {
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = conn.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			return nil
		}

		utils.LogWarning("DB", "База не готова (попытка %d/%d): %v", attempt, attempts, lastErr)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("база не прошла health-check после %d попыток: %w", attempts, lastErr)
}

// Migrate применяет миграции до последней ревизии. Запускается API-процессом
// перед стартом сервера; отсутствие новых миграций ошибкой не считается.
func Migrate(conn *sql.DB, migrationsPath string) error {
	driver, err := migratemysql.WithInstance(conn, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("ошибка инициализации драйвера миграций: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			utils.LogInfo("DB", "Новых миграций нет")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	utils.LogSuccess("DB", "Миграции применены")
	return nil
}
