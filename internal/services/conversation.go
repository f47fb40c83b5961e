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
)

var (
	ErrMissingUserIDs = errors.New("missing user ids")
	ErrSameUser       = errors.New("cannot create conversation with the same user")
	ErrInvalidUserID  = errors.New("invalid user id format")
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
)

type ConversationService struct {
	conversationRepo repository.ConversationStore
	cache            *cache.RedisCache
}

func NewConversationService(conversationRepo repository.ConversationStore) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		cache:            nil,
	}
}

func NewConversationServiceWithCache(conversationRepo repository.ConversationStore, cache *cache.RedisCache) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		cache:            cache,
	}
}

// NormalizePair приводит пару участников к хранимому порядку (first < second).
// Благодаря этому диалог (A, B) и диалог (B, A) — одна и та же запись.
func NormalizePair(userFirstID, userSecondID string) (string, string) {
	if userFirstID < userSecondID {
		return userFirstID, userSecondID
	}
	return userSecondID, userFirstID
}

// CreateConversation создаёт диалог между двумя пользователями. Повторное
// создание для той же пары возвращает существующий диалог.
func (s *ConversationService) CreateConversation(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error) {
	if userFirstID == "" || userSecondID == "" {
		return nil, ErrMissingUserIDs
	}

	if userFirstID == userSecondID {
		utils.LogWarning("ConversationService", "Попытка создать диалог с самим собой: %s", userFirstID)
		return nil, ErrSameUser
	}

	if _, err := uuid.Parse(userFirstID); err != nil {
		return nil, ErrInvalidUserID
	}
	if _, err := uuid.Parse(userSecondID); err != nil {
		return nil, ErrInvalidUserID
	}

	first, second := NormalizePair(userFirstID, userSecondID)

	existing, err := s.conversationRepo.GetByUsers(ctx, first, second)
	if err == nil {
		utils.LogInfo("ConversationService", "Диалог между %s и %s уже существует", first, second)
		return existing, nil
	}
	if !errors.Is(err, repository.ErrConversationNotFound) {
		return nil, err
	}

	conversation, err := s.conversationRepo.Create(ctx, first, second)
	if err != nil {
		// Гонка двух одновременных созданий: уникальный индекс сработал,
		// перечитываем уже существующую запись.
		if errors.Is(err, repository.ErrConversationExists) {
			return s.conversationRepo.GetByUsers(ctx, first, second)
		}
		utils.LogError("ConversationService", "Ошибка создания диалога", err)
		return nil, err
	}

	return conversation, nil
}

func (s *ConversationService) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if s.cache != nil {
		cacheKey := cache.ConversationKey(conversationID)
		var conversation models.Conversation

		err := s.cache.GetJSON(ctx, cacheKey, &conversation)
		if err == nil {
			utils.LogDebug("Cache", "HIT: диалог %s получен из кеша", conversationID)
			return &conversation, nil
		}
		if err != redis.Nil {
			utils.LogWarning("Cache", "Ошибка чтения из кеша: %v", err)
		}
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cacheKey := cache.ConversationKey(conversationID)
		if err := s.cache.SetJSON(ctx, cacheKey, conversation, cache.ConversationTTL); err != nil {
			utils.LogWarning("Cache", "Не удалось сохранить диалог в кеш: %v", err)
		}
	}

	return conversation, nil
}

func (s *ConversationService) ListUserConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	conversations, err := s.conversationRepo.GetByUserID(ctx, userID)
	if err != nil {
		utils.LogError("ConversationService", fmt.Sprintf("Ошибка получения диалогов пользователя %s", userID), err)
		return nil, err
	}

	utils.LogInfo("ConversationService", "Найдено диалогов для пользователя %s: %d", userID, len(conversations))
	return conversations, nil
}

// DeleteConversation мягко удаляет диалог. Удалять может только участник.
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if conversation.UserFirstID != userID && conversation.UserSecondID != userID {
		utils.LogWarning("ConversationService", "Попытка удалить чужой диалог %s пользователем %s", conversationID, userID)
		return ErrNotParticipant
	}

	if err := s.conversationRepo.SoftDelete(ctx, conversationID); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx,
			cache.ConversationKey(conversationID),
			cache.MessageHistoryKey(conversationID),
		)
	}

	return nil
}

// IsParticipant проверяет принадлежность пользователя к диалогу.
func IsParticipant(conversation *models.Conversation, userID string) bool {
	return conversation.UserFirstID == userID || conversation.UserSecondID == userID
}
