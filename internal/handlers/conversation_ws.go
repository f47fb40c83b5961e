package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"

	"chat-service/internal/cache"
	"chat-service/internal/models"
	"chat-service/internal/repository"
	"chat-service/internal/services"
	"chat-service/internal/utils"
	"chat-service/internal/ws"
)

// ConversationWSHandler держит websocket-подключения к диалогам и
// транслирует сохранённые сообщения всем участникам комнаты.
type ConversationWSHandler struct {
	conversationService *services.ConversationService
	messageService      *services.MessageService
	hub                 *ws.Hub
	cache               *cache.RedisCache
	upgrader            websocket.FastHTTPUpgrader
}

func NewConversationWSHandler(
	conversationService *services.ConversationService,
	messageService *services.MessageService,
	hub *ws.Hub,
	redisCache *cache.RedisCache,
) *ConversationWSHandler {
	utils.LogSuccess("ConversationWSHandler", "Инициализирован websocket-обработчик диалогов")
	return &ConversationWSHandler{
		conversationService: conversationService,
		messageService:      messageService,
		hub:                 hub,
		cache:               redisCache,
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(ctx *fasthttp.RequestCtx) bool { return true },
		},
	}
}

// ServeWS — GET /ws/conversations/{id}. Несуществующий или удалённый диалог
// закрывает соединение кодом 1008 сразу после рукопожатия.
func (h *ConversationWSHandler) ServeWS(ctx *fasthttp.RequestCtx) {
	conversationID := pathParam(ctx, "id")
	utils.LogWS(conversationID, "Запрос на подключение")

	_, lookupErr := h.conversationService.GetConversation(ctx, conversationID)

	err := h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		defer conn.Close()

		if lookupErr != nil {
			if errors.Is(lookupErr, repository.ErrConversationNotFound) {
				utils.LogWS(conversationID, "Диалог не найден, закрываем соединение")
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Conversation not found"))
				return
			}
			utils.LogError("ConversationWSHandler", fmt.Sprintf("Ошибка проверки диалога %s", conversationID), lookupErr)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "Unexpected server error"))
			return
		}

		client := ws.NewClient(conn)
		h.hub.Register(conversationID, client)
		defer h.hub.Unregister(conversationID, client)

		// После апгрейда RequestCtx больше не годится как context.Context:
		// соединение живёт дольше HTTP-обработчика.
		h.readLoop(context.Background(), conversationID, client, conn)
	})
	if err != nil {
		utils.LogError("ConversationWSHandler", "Ошибка апгрейда соединения", err)
	}
}

// readLoop читает кадры до разрыва соединения. Ошибки протокола и валидации
// отправляются клиенту как {"error": "..."} без закрытия соединения.
func (h *ConversationWSHandler) readLoop(ctx context.Context, conversationID string, client *ws.Client, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.LogWarning("ConversationWSHandler", "Соединение разорвано: %v", err)
			}
			return
		}

		action, err := ws.ParseClientAction(raw)
		if err != nil {
			client.SendJSON(ws.ErrorResponse("Invalid message format"))
			continue
		}

		switch action.Action {
		case ws.ActionSendMessage:
			h.handleSendMessage(ctx, conversationID, client, action.Data)
		default:
			client.SendJSON(ws.ErrorResponse(fmt.Sprintf("Unknown action: %s", action.Action)))
		}
	}
}

func (h *ConversationWSHandler) handleSendMessage(ctx context.Context, conversationID string, client *ws.Client, data ws.SendMessageData) {
	_, err := h.messageService.CreateMessage(ctx, models.CreateMessageRequest{
		ConversationID: conversationID,
		SenderID:       data.SenderID,
		RecipientID:    data.RecipientID,
		Content:        data.Content,
	})
	if err != nil {
		utils.LogWarning("ConversationWSHandler", "Сообщение отклонено: %v", err)
		client.SendJSON(ws.ErrorResponse(err.Error()))
		return
	}

	// Отправка сообщения продлевает метку присутствия отправителя
	if h.cache != nil {
		_ = h.cache.Set(ctx, cache.PresenceKey(conversationID, data.SenderID), "online", cache.PresenceTTL)
	}

	utils.LogWS(conversationID, "Сообщение сохранено и разослано")

	// Подтверждение уходит всем подключениям комнаты, включая отправителя.
	h.hub.Broadcast(conversationID, ws.MessageSavedResponse(data.SenderID, data.RecipientID, data.Content), nil)
}
