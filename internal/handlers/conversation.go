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

type ConversationHandler struct {
	conversationService *services.ConversationService
}

func NewConversationHandler(conversationService *services.ConversationService) *ConversationHandler {
	utils.LogSuccess("ConversationHandler", "Инициализирован обработчик диалогов")
	return &ConversationHandler{conversationService: conversationService}
}

// CreateConversationHandler — POST /conversations.
// Повторный запрос на ту же пару пользователей возвращает существующий диалог.
func (h *ConversationHandler) CreateConversationHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	utils.LogRequest("POST", "/conversations", userID)

	var req models.CreateConversationRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogError("ConversationHandler", "Ошибка парсинга JSON", err)
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body")
		utils.LogResponse("/conversations", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	conversation, err := h.conversationService.CreateConversation(ctx, req.UserFirstID, req.UserSecondID)
	if err != nil {
		status := conversationErrStatus(err)
		writeError(ctx, status, err.Error())
		utils.LogResponse("/conversations", status, time.Since(startTime))
		return
	}

	utils.LogSuccess("ConversationHandler", "Диалог готов: %s", conversation.ID)

	writeJSON(ctx, fasthttp.StatusCreated, models.ConversationResponse{
		ID:           conversation.ID,
		UserFirstID:  conversation.UserFirstID,
		UserSecondID: conversation.UserSecondID,
	})

	utils.LogResponse("/conversations", fasthttp.StatusCreated, time.Since(startTime))
}

// ListConversationsHandler — GET /conversations: все диалоги текущего пользователя.
func (h *ConversationHandler) ListConversationsHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	utils.LogRequest("GET", "/conversations", userID)

	conversations, err := h.conversationService.ListUserConversations(ctx, userID)
	if err != nil {
		utils.LogError("ConversationHandler", "Ошибка получения списка диалогов", err)
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/conversations", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	items := make([]models.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		items = append(items, models.ConversationResponse{
			ID:           c.ID,
			UserFirstID:  c.UserFirstID,
			UserSecondID: c.UserSecondID,
		})
	}

	writeJSON(ctx, fasthttp.StatusOK, models.ConversationListResponse{
		Conversations: items,
		Total:         len(items),
	})

	utils.LogResponse("/conversations", fasthttp.StatusOK, time.Since(startTime))
}

// GetConversationHandler — GET /conversations/{id}.
func (h *ConversationHandler) GetConversationHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	conversationID := pathParam(ctx, "id")
	utils.LogRequest("GET", "/conversations/"+conversationID, userID)

	conversation, err := h.conversationService.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, "Conversation not found")
			utils.LogResponse("/conversations/{id}", fasthttp.StatusNotFound, time.Since(startTime))
			return
		}
		utils.LogError("ConversationHandler", fmt.Sprintf("Ошибка получения диалога %s", conversationID), err)
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/conversations/{id}", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, models.ConversationResponse{
		ID:           conversation.ID,
		UserFirstID:  conversation.UserFirstID,
		UserSecondID: conversation.UserSecondID,
	})

	utils.LogResponse("/conversations/{id}", fasthttp.StatusOK, time.Since(startTime))
}

// DeleteConversationHandler — DELETE /conversations/{id}: мягкое удаление,
// доступно только участнику диалога.
func (h *ConversationHandler) DeleteConversationHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	conversationID := pathParam(ctx, "id")
	utils.LogRequest("DELETE", "/conversations/"+conversationID, userID)

	if err := h.conversationService.DeleteConversation(ctx, conversationID, userID); err != nil {
		status := conversationErrStatus(err)
		writeError(ctx, status, err.Error())
		utils.LogResponse("/conversations/{id}", status, time.Since(startTime))
		return
	}

	utils.LogSuccess("ConversationHandler", "Диалог помечен удалённым: %s", conversationID)

	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "deleted"})
	utils.LogResponse("/conversations/{id}", fasthttp.StatusOK, time.Since(startTime))
}

// conversationErrStatus транслирует ошибки сервисного слоя в HTTP-статусы.
func conversationErrStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, services.ErrNotParticipant):
		return fasthttp.StatusForbidden
	case errors.Is(err, services.ErrMissingUserIDs),
		errors.Is(err, services.ErrSameUser),
		errors.Is(err, services.ErrInvalidUserID):
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}
