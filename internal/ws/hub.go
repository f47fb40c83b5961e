package ws

import (
	"encoding/json"
	"sync"

	"github.com/fasthttp/websocket"

	"chat-service/internal/utils"
)

// Client — одно websocket-подключение. Запись в соединение сериализуется
// мьютексом: конкурентные WriteMessage на одном соединении недопустимы.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) SendJSON(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub хранит подключения по диалогам и рассылает события всем участникам.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(conversationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	room[client] = struct{}{}

	utils.LogWS(conversationID, "Подключение зарегистрировано (всего в диалоге: %d)", len(room))
}

func (h *Hub) Unregister(conversationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}

	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}

	utils.LogWS(conversationID, "Подключение снято с регистрации")
}

// Broadcast отправляет payload всем подключениям диалога, кроме except
// (nil — всем). Упавшие соединения пропускаются: их снимет читающая горутина.
func (h *Hub) Broadcast(conversationID string, payload interface{}, except *Client) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		if client != except {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.SendJSON(payload); err != nil {
			utils.LogWS(conversationID, "Ошибка отправки в соединение: %v", err)
		}
	}
}

// Count возвращает число подключений в диалоге.
func (h *Hub) Count(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}
