package repository

import (
	"context"
	"time"

	"chat-service/internal/models"
)

// Интерфейсы репозиториев, через которые сервисный слой ходит в хранилище.
// В тестах подменяются фейками.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Delete(ctx context.Context, userID string) error
}

type ConversationStore interface {
	Create(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error)
	GetByID(ctx context.Context, conversationID string) (*models.Conversation, error)
	GetByUsers(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Conversation, error)
	SoftDelete(ctx context.Context, conversationID string) error
	ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	Purge(ctx context.Context, conversationID string) error
}

type MessageStore interface {
	Create(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	GetByID(ctx context.Context, messageID string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	UpdateStatus(ctx context.Context, messageID string, status models.MessageStatus) error
	Delete(ctx context.Context, messageID string) error
	MarkDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.MessageStatus]int64, error)
}

var (
	_ UserStore         = (*UserRepository)(nil)
	_ ConversationStore = (*ConversationRepository)(nil)
	_ MessageStore      = (*MessageRepository)(nil)
)
