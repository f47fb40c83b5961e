package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"chat-service/internal/cache"
	"chat-service/internal/config"
	"chat-service/internal/db"
	"chat-service/internal/handlers"
	"chat-service/internal/middleware"
	"chat-service/internal/repository"
	"chat-service/internal/services"
	"chat-service/internal/utils"
	"chat-service/internal/worker"
	"chat-service/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil && os.Getenv("ENV") != "docker" {
		utils.LogWarning("Main", "Файл .env не найден, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		utils.LogError("Main", "Ошибка загрузки конфигурации", err)
		os.Exit(1)
	}

	utils.LogInfo("Main", "Запуск %s v%s", cfg.App.Name, cfg.App.Version)

	// База данных: подключение с ожиданием готовности и миграции
	conn, err := db.Connect(context.Background(), cfg.Database)
	if err != nil {
		utils.LogError("Main", "Не удалось подключиться к базе данных", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.Database.MigrationsPath); err != nil {
		utils.LogError("Main", "Ошибка применения миграций", err)
		os.Exit(1)
	}
	utils.LogSuccess("Main", "Миграции применены")

	// Redis: кеш не обязателен, сервис работает и без него
	redisCache := cache.NewRedisCache(cfg.Redis.Addr)
	if err := redisCache.Ping(context.Background()); err != nil {
		utils.LogWarning("Main", "Redis недоступен, кеширование отключено")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Пул воркеров под асинхронную инвалидацию кеша
	workerPool := worker.NewPool(cfg.Scheduler.Workers, cfg.Scheduler.QueueSize, cfg.Scheduler.MaxRetries)
	workerPool.Start()

	// Репозитории
	userRepo := repository.NewUserRepository(conn)
	conversationRepo := repository.NewConversationRepository(conn)
	messageRepo := repository.NewMessageRepository(conn)

	// Сервисы
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	conversationService := services.NewConversationServiceWithCache(conversationRepo, redisCache)
	messageService := services.NewMessageServiceWithCache(messageRepo, conversationRepo, redisCache)
	messageService.SetWorkerPool(workerPool)

	// Websocket-хаб
	hub := ws.NewHub()

	// Обработчики
	authHandler := handlers.NewAuthHandler(authService, userRepo)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	messageHandler := handlers.NewMessageHandler(messageService, hub)
	wsHandler := handlers.NewConversationWSHandler(conversationService, messageService, hub, redisCache)
	healthHandler := handlers.NewHealthHandler(cfg, conn, redisCache)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	r := router.New()

	// Публичные маршруты
	r.POST("/register", authHandler.RegisterHandler)
	r.POST("/login", authHandler.LoginHandler)
	r.GET("/health", healthHandler.HealthHandler)
	r.GET("/config-info", healthHandler.ConfigInfoHandler)

	// Websocket: Bearer-токен проверяется при рукопожатии тем же middleware,
	// что и у REST-маршрутов; проверка диалога — внутри обработчика
	r.GET("/ws/conversations/{id}", authMiddleware.RequireAuth(wsHandler.ServeWS))

	// Защищённые маршруты
	r.POST("/conversations", authMiddleware.RequireAuth(conversationHandler.CreateConversationHandler))
	r.GET("/conversations", authMiddleware.RequireAuth(conversationHandler.ListConversationsHandler))
	r.GET("/conversations/{id}", authMiddleware.RequireAuth(conversationHandler.GetConversationHandler))
	r.DELETE("/conversations/{id}", authMiddleware.RequireAuth(conversationHandler.DeleteConversationHandler))

	r.DELETE("/users/me", authMiddleware.RequireAuth(authHandler.DeleteUserHandler))

	r.POST("/messages", authMiddleware.RequireAuth(messageHandler.CreateMessageHandler))
	r.GET("/messages/{conversation_id}", authMiddleware.RequireAuth(messageHandler.GetHistoryHandler))
	r.PUT("/messages/{id}", authMiddleware.RequireAuth(messageHandler.UpdateMessageHandler))
	r.DELETE("/messages/{id}", authMiddleware.RequireAuth(messageHandler.DeleteMessageHandler))

	server := &fasthttp.Server{
		Handler: r.Handler,
		Name:    cfg.App.Name,
	}

	go func() {
		utils.LogSuccess("Main", "Сервер запущен на %s", cfg.Server.Addr)
		if err := server.ListenAndServe(cfg.Server.Addr); err != nil {
			utils.LogError("Main", "Сервер остановился с ошибкой", err)
			os.Exit(1)
		}
	}()

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChannel

	utils.LogInfo("Main", "Останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		utils.LogError("Main", "Принудительная остановка сервера", err)
	}

	if err := workerPool.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		utils.LogWarning("Main", "Пул воркеров не успел завершить задачи: %v", err)
	}

	stats := workerPool.GetStats()
	utils.LogInfo("Main", "Фоновых задач выполнено: %d, с ошибками: %d", stats.CompletedJobs, stats.FailedJobs)

	utils.LogSuccess("Main", "Сервер остановлен")
}
