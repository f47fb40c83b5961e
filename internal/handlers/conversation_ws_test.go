package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"

	"chat-service/internal/middleware"
	"chat-service/internal/models"
	"chat-service/internal/repository"
	"chat-service/internal/services"
	"chat-service/internal/ws"
)

const (
	wsUserA = "0b9cb697-3e4a-4b4b-9a5c-111111111111"
	wsUserB = "c3a1f1af-9f2a-4d7e-8e2a-222222222222"
)

type wsFakeConversationStore struct {
	conversations map[string]*models.Conversation
}

func (f *wsFakeConversationStore) Create(ctx context.Context, a, b string) (*models.Conversation, error) {
	return nil, repository.ErrConversationExists
}

func (f *wsFakeConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok || c.IsDeleted {
		return nil, repository.ErrConversationNotFound
	}
	return c, nil
}

func (f *wsFakeConversationStore) GetByUsers(ctx context.Context, a, b string) (*models.Conversation, error) {
	return nil, repository.ErrConversationNotFound
}

func (f *wsFakeConversationStore) GetByUserID(ctx context.Context, userID string) ([]models.Conversation, error) {
	return nil, nil
}

func (f *wsFakeConversationStore) SoftDelete(ctx context.Context, id string) error { return nil }

func (f *wsFakeConversationStore) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return nil, nil
}

func (f *wsFakeConversationStore) Purge(ctx context.Context, id string) error { return nil }

type wsFakeMessageStore struct {
	mu      sync.Mutex
	created []models.Message
}

func (f *wsFakeMessageStore) Create(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := models.Message{
		ID:             "msg-1",
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Status:         models.StatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	f.created = append(f.created, m)
	return &m, nil
}

func (f *wsFakeMessageStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *wsFakeMessageStore) GetByID(ctx context.Context, id string) (*models.Message, error) {
	return nil, repository.ErrMessageNotFound
}

func (f *wsFakeMessageStore) ListByConversation(ctx context.Context, id string) ([]models.Message, error) {
	return nil, nil
}

func (f *wsFakeMessageStore) UpdateStatus(ctx context.Context, id string, st models.MessageStatus) error {
	return nil
}

func (f *wsFakeMessageStore) Delete(ctx context.Context, id string) error { return nil }

func (f *wsFakeMessageStore) MarkDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *wsFakeMessageStore) CountByStatus(ctx context.Context) (map[models.MessageStatus]int64, error) {
	return nil, nil
}

var (
	_ repository.ConversationStore = (*wsFakeConversationStore)(nil)
	_ repository.MessageStore      = (*wsFakeMessageStore)(nil)
)

// startWSServer поднимает сервер с websocket-маршрутом, смонтированным так же,
// как в боевом процессе: за проверкой Bearer-токена.
func startWSServer(t *testing.T, convStore repository.ConversationStore, msgStore repository.MessageStore) (addr, token string, stop func()) {
	t.Helper()

	authService := services.NewAuthService("test-secret", time.Hour)
	tok, err := authService.GenerateToken(wsUserA)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	conversationService := services.NewConversationService(convStore)
	messageService := services.NewMessageService(msgStore, convStore)
	hub := ws.NewHub()
	wsHandler := NewConversationWSHandler(conversationService, messageService, hub, nil)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	r := router.New()
	r.GET("/ws/conversations/{id}", authMiddleware.RequireAuth(wsHandler.ServeWS))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	server := &fasthttp.Server{Handler: r.Handler}
	go server.Serve(ln)

	return ln.Addr().String(), tok, func() {
		server.Shutdown()
		ln.Close()
	}
}

func dialWS(t *testing.T, addr, conversationID, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DefaultDialer.Dial("ws://"+addr+"/ws/conversations/"+conversationID, header)
}

func TestServeWS_RejectsMissingToken(t *testing.T) {
	convStore := &wsFakeConversationStore{conversations: map[string]*models.Conversation{}}
	addr, _, stop := startWSServer(t, convStore, &wsFakeMessageStore{})
	defer stop()

	conn, resp, err := dialWS(t, addr, "conv-1", "")
	if err == nil {
		conn.Close()
		t.Fatalf("handshake must fail without Authorization header")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on handshake, got %+v", resp)
	}
}

func TestServeWS_UnknownConversationCloses1008(t *testing.T) {
	convStore := &wsFakeConversationStore{conversations: map[string]*models.Conversation{}}
	addr, token, stop := startWSServer(t, convStore, &wsFakeMessageStore{})
	defer stop()

	conn, _, err := dialWS(t, addr, "missing", token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected close 1008, got %v", err)
	}
}

func TestServeWS_SoftDeletedConversationCloses1008(t *testing.T) {
	deleted := &models.Conversation{
		ID:           "conv-1",
		UserFirstID:  wsUserA,
		UserSecondID: wsUserB,
		IsDeleted:    true,
	}
	convStore := &wsFakeConversationStore{conversations: map[string]*models.Conversation{"conv-1": deleted}}
	addr, token, stop := startWSServer(t, convStore, &wsFakeMessageStore{})
	defer stop()

	conn, _, err := dialWS(t, addr, "conv-1", token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected close 1008 for soft-deleted conversation, got %v", err)
	}
}

func TestServeWS_ErrorFrameKeepsConnection(t *testing.T) {
	convStore := &wsFakeConversationStore{conversations: map[string]*models.Conversation{
		"conv-1": {ID: "conv-1", UserFirstID: wsUserA, UserSecondID: wsUserB},
	}}
	msgStore := &wsFakeMessageStore{}
	addr, token, stop := startWSServer(t, convStore, msgStore)
	defer stop()

	conn, _, err := dialWS(t, addr, "conv-1", token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// Кривой кадр получает {"error": ...}, соединение живёт дальше
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var errFrame map[string]string
	if _, raw, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read error frame: %v", err)
	} else if err := json.Unmarshal(raw, &errFrame); err != nil || errFrame["error"] == "" {
		t.Fatalf("expected error frame, got %s", raw)
	}

	// По тому же соединению корректный send_message сохраняется и
	// подтверждается message_saved
	frame := map[string]interface{}{
		"action": ws.ActionSendMessage,
		"data": map[string]string{
			"sender_id":    wsUserA,
			"recipient_id": wsUserB,
			"content":      "привет",
		},
	}
	raw, _ := json.Marshal(frame)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write send_message: %v", err)
	}

	var saved struct {
		Action string             `json:"action"`
		Data   ws.SendMessageData `json:"data"`
	}
	if _, raw, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read message_saved: %v", err)
	} else if err := json.Unmarshal(raw, &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if saved.Action != ws.ActionMessageSaved || saved.Data.Content != "привет" {
		t.Fatalf("unexpected confirmation: %+v", saved)
	}

	if msgStore.createdCount() != 1 {
		t.Fatalf("expected one persisted message, got %d", msgStore.createdCount())
	}
}
