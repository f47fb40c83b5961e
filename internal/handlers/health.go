package handlers

import (
	"database/sql"
	"time"

	"github.com/valyala/fasthttp"

	"chat-service/internal/cache"
	"chat-service/internal/config"
	"chat-service/internal/utils"
)

type HealthHandler struct {
	cfg   *config.Config
	db    *sql.DB
	cache *cache.RedisCache
}

func NewHealthHandler(cfg *config.Config, db *sql.DB, redisCache *cache.RedisCache) *HealthHandler {
	return &HealthHandler{
		cfg:   cfg,
		db:    db,
		cache: redisCache,
	}
}

// HealthHandler — GET /health: живость процесса плюс состояние зависимостей.
func (h *HealthHandler) HealthHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()

	dbStatus := "ok"
	if err := h.db.PingContext(ctx); err != nil {
		utils.LogError("HealthHandler", "База данных недоступна", err)
		dbStatus = "unavailable"
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			utils.LogWarning("HealthHandler", "Redis недоступен")
			cacheStatus = "unavailable"
		}
	}

	status := fasthttp.StatusOK
	overall := "healthy"
	if dbStatus != "ok" {
		status = fasthttp.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(ctx, status, map[string]interface{}{
		"status":   overall,
		"database": dbStatus,
		"cache":    cacheStatus,
		"service":  h.cfg.App.Name,
		"version":  h.cfg.App.Version,
	})

	utils.LogResponse("/health", status, time.Since(startTime))
}

// ConfigInfoHandler — GET /config-info: безопасный срез конфигурации без секретов.
func (h *HealthHandler) ConfigInfoHandler(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"app_name":    h.cfg.App.Name,
		"app_version": h.cfg.App.Version,
		"environment": h.cfg.App.Env,
		"listen_addr": h.cfg.Server.Addr,
	})
}
