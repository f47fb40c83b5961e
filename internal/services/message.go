package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chat-service/internal/cache"
	"chat-service/internal/models"
	"chat-service/internal/repository"
	"chat-service/internal/utils"
	"chat-service/internal/worker"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidStatus = errors.New("invalid status value")
)

type MessageService struct {
	messageRepo      repository.MessageStore
	conversationRepo repository.ConversationStore
	cache            *cache.RedisCache
	workerPool       *worker.Pool
}

func NewMessageService(messageRepo repository.MessageStore, conversationRepo repository.ConversationStore) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		cache:            nil,
	}
}

func NewMessageServiceWithCache(
	messageRepo repository.MessageStore,
	conversationRepo repository.ConversationStore,
	cache *cache.RedisCache,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		cache:            cache,
	}
}

// SetWorkerPool подключает пул для асинхронной инвалидации кеша истории.
func (s *MessageService) SetWorkerPool(pool *worker.Pool) {
	s.workerPool = pool
	utils.LogSuccess("MessageService", "Worker Pool подключен к сервису сообщений")
}

// CreateMessage сохраняет сообщение в диалоге. Отправитель и получатель
// (если указан) обязаны быть участниками диалога; статус всегда SENT.
func (s *MessageService) CreateMessage(ctx context.Context, req models.CreateMessageRequest) (*models.Message, error) {
	if req.ConversationID == "" || req.SenderID == "" || req.Content == "" {
		return nil, ErrMissingFields
	}

	if _, err := uuid.Parse(req.SenderID); err != nil {
		return nil, ErrInvalidUserID
	}
	if req.RecipientID != "" {
		if _, err := uuid.Parse(req.RecipientID); err != nil {
			return nil, ErrInvalidUserID
		}
	}

	conversation, err := s.conversationRepo.GetByID(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	if !IsParticipant(conversation, req.SenderID) {
		utils.LogWarning("MessageService", "Отправитель %s не участник диалога %s", req.SenderID, req.ConversationID)
		return nil, ErrNotParticipant
	}

	if req.RecipientID != "" && !IsParticipant(conversation, req.RecipientID) {
		utils.LogWarning("MessageService", "Получатель %s не участник диалога %s", req.RecipientID, req.ConversationID)
		return nil, ErrNotParticipant
	}

	message, err := s.messageRepo.Create(ctx, req.ConversationID, req.SenderID, req.Content)
	if err != nil {
		utils.LogError("MessageService", "Ошибка создания сообщения", err)
		return nil, err
	}

	s.invalidateHistoryAsync(ctx, req.ConversationID, message.ID)

	return message, nil
}

// GetConversationHistory возвращает все сообщения диалога по возрастанию
// created_at. Историю отдаём из кеша, пока её не инвалидирует новое сообщение.
func (s *MessageService) GetConversationHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := s.conversationRepo.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cacheKey := cache.MessageHistoryKey(conversationID)
		var messages []models.Message

		err := s.cache.GetJSON(ctx, cacheKey, &messages)
		if err == nil {
			utils.LogDebug("Cache", "HIT: история диалога %s получена из кеша (%d сообщений)", conversationID, len(messages))
			return messages, nil
		}
		if err != redis.Nil {
			utils.LogWarning("Cache", "Ошибка чтения из кеша: %v", err)
		}
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		utils.LogError("MessageService", fmt.Sprintf("Ошибка получения истории диалога %s", conversationID), err)
		return nil, err
	}

	if s.cache != nil {
		cacheKey := cache.MessageHistoryKey(conversationID)
		if err := s.cache.SetJSON(ctx, cacheKey, messages, cache.MessageHistoryTTL); err != nil {
			utils.LogWarning("Cache", "Не удалось сохранить историю в кеш: %v", err)
		}
	}

	return messages, nil
}

// UpdateMessageStatus меняет статус сообщения (SENT / DELIVERED / READ).
func (s *MessageService) UpdateMessageStatus(ctx context.Context, messageID, status string) (*models.Message, error) {
	if status == "" {
		return nil, ErrMissingFields
	}

	if !models.ValidMessageStatus(status) {
		utils.LogWarning("MessageService", "Недопустимый статус сообщения: %s", status)
		return nil, ErrInvalidStatus
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.UpdateStatus(ctx, messageID, models.MessageStatus(status)); err != nil {
		utils.LogError("MessageService", fmt.Sprintf("Ошибка обновления статуса сообщения %s", messageID), err)
		return nil, err
	}

	message.Status = models.MessageStatus(status)
	s.invalidateHistoryAsync(ctx, message.ConversationID, messageID)

	utils.LogInfo("MessageService", "Статус сообщения %s обновлён на %s", messageID, status)
	return message, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, messageID string) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		utils.LogError("MessageService", fmt.Sprintf("Ошибка удаления сообщения %s", messageID), err)
		return err
	}

	s.invalidateHistoryAsync(ctx, message.ConversationID, messageID)
	return nil
}

// invalidateHistoryAsync сбрасывает кеш истории диалога через Worker Pool;
// при переполненной очереди или отсутствии пула — синхронно.
func (s *MessageService) invalidateHistoryAsync(ctx context.Context, conversationID, messageID string) {
	if s.cache == nil {
		return
	}

	if s.workerPool != nil {
		job := worker.Job{
			ID: fmt.Sprintf("cache-invalidate-%s", messageID),
			Task: func() error {
				return s.cache.Delete(context.Background(), cache.MessageHistoryKey(conversationID))
			},
		}

		if err := s.workerPool.Submit(job); err != nil {
			utils.LogWarning("MessageService", "Worker Pool переполнен, инвалидация кеша выполняется синхронно")
			_ = s.cache.Delete(ctx, cache.MessageHistoryKey(conversationID))
		}
		return
	}

	_ = s.cache.Delete(ctx, cache.MessageHistoryKey(conversationID))
}
