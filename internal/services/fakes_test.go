package services

import (
	"context"
	"fmt"
	"time"

	"chat-service/internal/models"
	"chat-service/internal/repository"
)

// Фейковые хранилища для тестов сервисного слоя.

type fakeConversationStore struct {
	conversations  map[string]*models.Conversation
	createCalls    int
	createErr      error
	getByUsersSeen int
	hideFirstReads int // столько первых вызовов GetByUsers отвечают "не найдено"
	softDeleted    []string
	purged         []string
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{conversations: make(map[string]*models.Conversation)}
}

func (f *fakeConversationStore) add(id, first, second string) *models.Conversation {
	c := &models.Conversation{
		ID:           id,
		UserFirstID:  first,
		UserSecondID: second,
		CreatedAt:    time.Now().UTC(),
	}
	f.conversations[id] = c
	return c
}

func (f *fakeConversationStore) Create(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := fmt.Sprintf("conv-%d", len(f.conversations)+1)
	return f.add(id, userFirstID, userSecondID), nil
}

func (f *fakeConversationStore) GetByID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	c, ok := f.conversations[conversationID]
	if !ok || c.IsDeleted {
		return nil, repository.ErrConversationNotFound
	}
	return c, nil
}

func (f *fakeConversationStore) GetByUsers(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error) {
	f.getByUsersSeen++
	if f.getByUsersSeen <= f.hideFirstReads {
		return nil, repository.ErrConversationNotFound
	}
	for _, c := range f.conversations {
		if c.UserFirstID == userFirstID && c.UserSecondID == userSecondID && !c.IsDeleted {
			return c, nil
		}
	}
	return nil, repository.ErrConversationNotFound
}

func (f *fakeConversationStore) GetByUserID(ctx context.Context, userID string) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, c := range f.conversations {
		if !c.IsDeleted && (c.UserFirstID == userID || c.UserSecondID == userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversationStore) SoftDelete(ctx context.Context, conversationID string) error {
	c, ok := f.conversations[conversationID]
	if !ok || c.IsDeleted {
		return repository.ErrConversationNotFound
	}
	c.IsDeleted = true
	now := time.Now().UTC()
	c.DeletedAt = &now
	f.softDeleted = append(f.softDeleted, conversationID)
	return nil
}

func (f *fakeConversationStore) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	for id, c := range f.conversations {
		if c.IsDeleted && c.DeletedAt != nil && c.DeletedAt.Before(cutoff) {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeConversationStore) Purge(ctx context.Context, conversationID string) error {
	if _, ok := f.conversations[conversationID]; !ok {
		return repository.ErrConversationNotFound
	}
	delete(f.conversations, conversationID)
	f.purged = append(f.purged, conversationID)
	return nil
}

type fakeMessageStore struct {
	messages      map[string]*models.Message
	deliveredSeen int64
	statusCounts  map[models.MessageStatus]int64
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*models.Message)}
}

func (f *fakeMessageStore) Create(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	m := &models.Message{
		ID:             fmt.Sprintf("msg-%d", len(f.messages)+1),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Status:         models.StatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeMessageStore) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	m, ok := f.messages[messageID]
	if !ok {
		return nil, repository.ErrMessageNotFound
	}
	return m, nil
}

func (f *fakeMessageStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) UpdateStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	m, ok := f.messages[messageID]
	if !ok {
		return repository.ErrMessageNotFound
	}
	m.Status = status
	return nil
}

func (f *fakeMessageStore) Delete(ctx context.Context, messageID string) error {
	if _, ok := f.messages[messageID]; !ok {
		return repository.ErrMessageNotFound
	}
	delete(f.messages, messageID)
	return nil
}

func (f *fakeMessageStore) MarkDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	for _, m := range f.messages {
		if m.Status == models.StatusSent && m.CreatedAt.Before(cutoff) {
			m.Status = models.StatusDelivered
			affected++
		}
	}
	f.deliveredSeen += affected
	return affected, nil
}

func (f *fakeMessageStore) CountByStatus(ctx context.Context) (map[models.MessageStatus]int64, error) {
	if f.statusCounts != nil {
		return f.statusCounts, nil
	}
	counts := make(map[models.MessageStatus]int64)
	for _, m := range f.messages {
		counts[m.Status]++
	}
	return counts, nil
}

var (
	_ repository.ConversationStore = (*fakeConversationStore)(nil)
	_ repository.MessageStore      = (*fakeMessageStore)(nil)
)
