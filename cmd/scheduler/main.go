package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"chat-service/internal/cache"
	"chat-service/internal/config"
	"chat-service/internal/db"
	"chat-service/internal/repository"
	"chat-service/internal/scheduler"
	"chat-service/internal/utils"
	"chat-service/internal/worker"
)

// Отдельный процесс фоновых задач: очистка удалённых диалогов,
// досылка статусов доставки и снимки статистики. Миграции не применяет —
// они остаются за API-процессом.
func main() {
	if err := godotenv.Load(); err != nil && os.Getenv("ENV") != "docker" {
		utils.LogWarning("Scheduler", "Файл .env не найден, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		utils.LogError("Scheduler", "Ошибка загрузки конфигурации", err)
		os.Exit(1)
	}

	utils.LogInfo("Scheduler", "Запуск планировщика %s", cfg.App.Name)

	conn, err := db.Connect(context.Background(), cfg.Database)
	if err != nil {
		utils.LogError("Scheduler", "Не удалось подключиться к базе данных", err)
		os.Exit(1)
	}
	defer conn.Close()

	redisCache := cache.NewRedisCache(cfg.Redis.Addr)
	if err := redisCache.Ping(context.Background()); err != nil {
		utils.LogWarning("Scheduler", "Redis недоступен, снимки статистики отключены")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	workerPool := worker.NewPool(cfg.Scheduler.Workers, cfg.Scheduler.QueueSize, cfg.Scheduler.MaxRetries)
	workerPool.Start()

	conversationRepo := repository.NewConversationRepository(conn)
	messageRepo := repository.NewMessageRepository(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	sched := scheduler.New(cfg.Scheduler, conversationRepo, messageRepo, redisCache, workerPool)
	sched.Start(ctx, &wg)

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChannel

	utils.LogInfo("Scheduler", "Останавливаем планировщик...")
	cancel()
	wg.Wait()

	if err := workerPool.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		utils.LogWarning("Scheduler", "Пул воркеров не успел завершить задачи: %v", err)
	}

	stats := workerPool.GetStats()
	utils.LogInfo("Scheduler", "Фоновых задач выполнено: %d, с ошибками: %d", stats.CompletedJobs, stats.FailedJobs)

	utils.LogSuccess("Scheduler", "Планировщик остановлен")
}
