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
	"chat-service/internal/ws"
)

type MessageHandler struct {
	messageService *services.MessageService
	hub            *ws.Hub
}

// NewMessageHandler. hub может быть nil — тогда REST-создание сообщений
// не рассылает уведомления подключённым клиентам.
func NewMessageHandler(messageService *services.MessageService, hub *ws.Hub) *MessageHandler {
	utils.LogSuccess("MessageHandler", "Инициализирован обработчик сообщений")
	return &MessageHandler{
		messageService: messageService,
		hub:            hub,
	}
}

// CreateMessageHandler — POST /messages.
func (h *MessageHandler) CreateMessageHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	utils.LogRequest("POST", "/messages", userID)

	var req models.CreateMessageRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogError("MessageHandler", "Ошибка парсинга JSON", err)
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body")
		utils.LogResponse("/messages", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	message, err := h.messageService.CreateMessage(ctx, req)
	if err != nil {
		status := messageErrStatus(err)
		writeError(ctx, status, err.Error())
		utils.LogResponse("/messages", status, time.Since(startTime))
		return
	}

	utils.LogSuccess("MessageHandler", "Сообщение создано: %s", message.ID)

	if h.hub != nil {
		h.hub.Broadcast(message.ConversationID,
			ws.MessageSavedResponse(req.SenderID, req.RecipientID, req.Content), nil)
	}

	writeJSON(ctx, fasthttp.StatusCreated, message)
	utils.LogResponse("/messages", fasthttp.StatusCreated, time.Since(startTime))
}

// GetHistoryHandler — GET /messages/{conversation_id}: вся история по возрастанию даты.
func (h *MessageHandler) GetHistoryHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	conversationID := pathParam(ctx, "conversation_id")
	utils.LogRequest("GET", "/messages/"+conversationID, userID)

	messages, err := h.messageService.GetConversationHistory(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, "Conversation not found")
			utils.LogResponse("/messages/{conversation_id}", fasthttp.StatusNotFound, time.Since(startTime))
			return
		}
		utils.LogError("MessageHandler", fmt.Sprintf("Ошибка получения истории %s", conversationID), err)
		writeError(ctx, fasthttp.StatusInternalServerError, "Unexpected server error")
		utils.LogResponse("/messages/{conversation_id}", fasthttp.StatusInternalServerError, time.Since(startTime))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, models.MessageListResponse{
		Messages: messages,
		Total:    len(messages),
	})

	utils.LogResponse("/messages/{conversation_id}", fasthttp.StatusOK, time.Since(startTime))
}

// UpdateMessageHandler — PUT /messages/{id}: смена статуса доставки.
func (h *MessageHandler) UpdateMessageHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	messageID := pathParam(ctx, "id")
	utils.LogRequest("PUT", "/messages/"+messageID, userID)

	var req models.UpdateMessageRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogError("MessageHandler", "Ошибка парсинга JSON", err)
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body")
		utils.LogResponse("/messages/{id}", fasthttp.StatusBadRequest, time.Since(startTime))
		return
	}

	message, err := h.messageService.UpdateMessageStatus(ctx, messageID, req.Status)
	if err != nil {
		status := messageErrStatus(err)
		writeError(ctx, status, err.Error())
		utils.LogResponse("/messages/{id}", status, time.Since(startTime))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, message)
	utils.LogResponse("/messages/{id}", fasthttp.StatusOK, time.Since(startTime))
}

// DeleteMessageHandler — DELETE /messages/{id}.
func (h *MessageHandler) DeleteMessageHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	userID := authUserID(ctx)
	messageID := pathParam(ctx, "id")
	utils.LogRequest("DELETE", "/messages/"+messageID, userID)

	if err := h.messageService.DeleteMessage(ctx, messageID); err != nil {
		status := messageErrStatus(err)
		writeError(ctx, status, err.Error())
		utils.LogResponse("/messages/{id}", status, time.Since(startTime))
		return
	}

	utils.LogSuccess("MessageHandler", "Сообщение удалено: %s", messageID)

	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "deleted"})
	utils.LogResponse("/messages/{id}", fasthttp.StatusOK, time.Since(startTime))
}

func messageErrStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrConversationNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, services.ErrNotParticipant):
		return fasthttp.StatusForbidden
	case errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidUserID):
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}
