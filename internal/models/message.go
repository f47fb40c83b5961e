package models

import "time"

// MessageStatus — статус доставки сообщения.
type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

// ValidMessageStatus проверяет, что значение входит в ENUM статусов.
func ValidMessageStatus(s string) bool {
	switch MessageStatus(s) {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CreateMessageRequest — тело POST /messages. recipient_id проверяется
// на принадлежность к диалогу, но в строке сообщения не хранится.
type CreateMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	Content        string `json:"content"`
}

type UpdateMessageRequest struct {
	Status string `json:"status"`
}

type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}
