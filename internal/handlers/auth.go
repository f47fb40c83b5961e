package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"chat-service/internal/models"
	"chat-service/internal/repository"
	"chat-service/internal/services"
	"chat-service/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
	userRepo    repository.UserStore
}

func NewAuthHandler(authService *services.AuthService, userRepo repository.UserStore) *AuthHandler {
	utils.LogSuccess("AuthHandler", "Инициализирован обработчик аутентификации")
	return &AuthHandler{
		authService: authService,
		userRepo:    userRepo,
	}
}

func (h *AuthHandler) RegisterHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	utils.LogRequest("POST", "/register", "anonymous")

	var req models.RegisterRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogError("AuthHandler", "Ошибка парсинга JSON", err)
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body")
		utils.LogResponse("/register", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	if req.Name == "" || req.Password == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "Name and password are required")
		utils.LogResponse("/register", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	if len(req.Password) < 6 {
		writeError(ctx, fasthttp.StatusBadRequest, "Password must be at least 6 characters")
		utils.LogResponse("/register", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	utils.LogInfo("AuthHandler", "Регистрация пользователя: %s", req.Name)

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/register", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	user := &models.User{
		Name:         req.Name,
		PasswordHash: passwordHash,
	}

	if err := h.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			writeError(ctx, fasthttp.StatusConflict, "User with this name already exists")
			utils.LogResponse("/register", fasthttp.StatusConflict, time.Since(startTime))
			return
		}
		utils.LogError("AuthHandler", fmt.Sprintf("Ошибка создания пользователя %s", req.Name), err)
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/register", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	utils.LogSuccess("AuthHandler", "Пользователь зарегистрирован: %s", user.Name)

	writeJSON(ctx, fasthttp.StatusCreated, map[string]interface{}{
		"user_id":    user.ID,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	})

	utils.LogResponse("/register", fasthttp.StatusCreated, time.Since(startTime))
}

func (h *AuthHandler) LoginHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	utils.LogRequest("POST", "/login", "anonymous")

	var req models.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogError("AuthHandler", "Ошибка парсинга JSON", err)
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body")
		utils.LogResponse("/login", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	user, err := h.userRepo.GetByName(ctx, req.Name)
	if err != nil {
		utils.LogWarning("AuthHandler", "Пользователь не найден: %s", req.Name)
		writeError(ctx, fasthttp.StatusUnauthorized, "Invalid name or password")
		utils.LogResponse("/login", fasthttp.StatusUnauthorized, time.Since(startTime))
		return
	}

	if err := h.authService.CheckPasswordHash(req.Password, user.PasswordHash); err != nil {
		utils.LogWarning("AuthHandler", "Неверный пароль для пользователя: %s", req.Name)
		writeError(ctx, fasthttp.StatusUnauthorized, "Invalid name or password")
		utils.LogResponse("/login", fasthttp.StatusUnauthorized, time.Since(startTime))
		return
	}

	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/login", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	utils.LogSuccess("AuthHandler", "Пользователь вошёл: %s (ID: %s)", user.Name, user.ID)

	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"token":      token,
		"user_id":    user.ID,
		"name":       user.Name,
		"expires_in": "24h",
	})

	utils.LogResponse("/login", fasthttp.StatusOK, time.Since(startTime))
}

// DeleteUserHandler — DELETE /users/me: пользователь удаляет собственную
// учётную запись.
func (h *AuthHandler) DeleteUserHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	utils.LogRequest("DELETE", "/users/me", userID)

	if err := h.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, "User not found")
			utils.LogResponse("/users/me", fasthttp.StatusNotFound, time.Since(startTime))
			return
		}
		utils.LogError("AuthHandler", fmt.Sprintf("Ошибка удаления пользователя %s", userID), err)
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/users/me", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	utils.LogSuccess("AuthHandler", "Пользователь удалён: %s", userID)

	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "deleted"})
	utils.LogResponse("/users/me", fasthttp.StatusOK, time.Since(startTime))
}
