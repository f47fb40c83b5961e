package services

import (
	"context"
	"errors"
	"testing"

	"chat-service/internal/repository"
)

const (
	userA = "0b9cb697-3e4a-4b4b-9a5c-111111111111"
	userB = "c3a1f1af-9f2a-4d7e-8e2a-222222222222"
	userC = "e7d2b540-5c1b-4f6d-bd3f-333333333333"
)

func TestNormalizePair(t *testing.T) {
	f1, s1 := NormalizePair(userA, userB)
	f2, s2 := NormalizePair(userB, userA)
	if f1 != f2 || s1 != s2 {
		t.Fatalf("pair order depends on argument order: (%s,%s) vs (%s,%s)", f1, s1, f2, s2)
	}
	if f1 >= s1 {
		t.Fatalf("expected first < second, got (%s, %s)", f1, s1)
	}
}

func TestCreateConversation_MissingIDs(t *testing.T) {
	svc := NewConversationService(newFakeConversationStore())
	if _, err := svc.CreateConversation(context.Background(), "", userB); !errors.Is(err, ErrMissingUserIDs) {
		t.Fatalf("expected ErrMissingUserIDs, got %v", err)
	}
	if _, err := svc.CreateConversation(context.Background(), userA, ""); !errors.Is(err, ErrMissingUserIDs) {
		t.Fatalf("expected ErrMissingUserIDs, got %v", err)
	}
}

func TestCreateConversation_SameUser(t *testing.T) {
	svc := NewConversationService(newFakeConversationStore())
	if _, err := svc.CreateConversation(context.Background(), userA, userA); !errors.Is(err, ErrSameUser) {
		t.Fatalf("expected ErrSameUser, got %v", err)
	}
}

func TestCreateConversation_InvalidUUID(t *testing.T) {
	svc := NewConversationService(newFakeConversationStore())
	if _, err := svc.CreateConversation(context.Background(), "not-a-uuid", userB); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestCreateConversation_NormalizesOrder(t *testing.T) {
	store := newFakeConversationStore()
	svc := NewConversationService(store)

	conv, err := svc.CreateConversation(context.Background(), userB, userA)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.UserFirstID >= conv.UserSecondID {
		t.Fatalf("stored pair not normalized: (%s, %s)", conv.UserFirstID, conv.UserSecondID)
	}
}

func TestCreateConversation_Idempotent(t *testing.T) {
	store := newFakeConversationStore()
	svc := NewConversationService(store)

	first, err := svc.CreateConversation(context.Background(), userA, userB)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Повтор в обратном порядке аргументов возвращает тот же диалог.
	second, err := svc.CreateConversation(context.Background(), userB, userA)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same conversation, got %s and %s", first.ID, second.ID)
	}
	if store.createCalls != 1 {
		t.Fatalf("expected single Create call, got %d", store.createCalls)
	}
}

func TestCreateConversation_RaceOnUniqueIndex(t *testing.T) {
	store := newFakeConversationStore()
	svc := NewConversationService(store)

	// Конкурирующий процесс вставил запись между предварительной проверкой
	// и Create: проверка отвечает "не найдено", Create — конфликтом
	// уникального индекса, после чего сервис перечитывает готовую запись.
	first, second := NormalizePair(userA, userB)
	existing := store.add("conv-race", first, second)
	store.hideFirstReads = 1
	store.createErr = repository.ErrConversationExists

	conv, err := svc.CreateConversation(context.Background(), userA, userB)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID != existing.ID {
		t.Fatalf("expected re-read of existing conversation %s, got %s", existing.ID, conv.ID)
	}
}

func TestDeleteConversation_NotParticipant(t *testing.T) {
	store := newFakeConversationStore()
	store.add("conv-1", userA, userB)
	svc := NewConversationService(store)

	if err := svc.DeleteConversation(context.Background(), "conv-1", userC); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if len(store.softDeleted) != 0 {
		t.Fatalf("conversation must not be deleted by an outsider")
	}
}

func TestDeleteConversation_SoftDeletes(t *testing.T) {
	store := newFakeConversationStore()
	store.add("conv-1", userA, userB)
	svc := NewConversationService(store)

	if err := svc.DeleteConversation(context.Background(), "conv-1", userA); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if len(store.softDeleted) != 1 || store.softDeleted[0] != "conv-1" {
		t.Fatalf("expected soft delete of conv-1, got %v", store.softDeleted)
	}

	// Удалённый диалог больше не виден
	if _, err := svc.GetConversation(context.Background(), "conv-1"); !errors.Is(err, repository.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound after delete, got %v", err)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	svc := NewConversationService(newFakeConversationStore())
	if _, err := svc.GetConversation(context.Background(), "missing"); !errors.Is(err, repository.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
