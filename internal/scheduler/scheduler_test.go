package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"chat-service/internal/config"
	"chat-service/internal/models"
	"chat-service/internal/repository"
	"chat-service/internal/worker"
)

type stubConversationStore struct {
	mu          sync.Mutex
	deleted     []string
	purged      []string
	purgeErrFor map[string]error
}

func (s *stubConversationStore) Create(ctx context.Context, a, b string) (*models.Conversation, error) {
	return nil, nil
}
func (s *stubConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	return nil, repository.ErrConversationNotFound
}
func (s *stubConversationStore) GetByUsers(ctx context.Context, a, b string) (*models.Conversation, error) {
	return nil, repository.ErrConversationNotFound
}
func (s *stubConversationStore) GetByUserID(ctx context.Context, userID string) ([]models.Conversation, error) {
	return nil, nil
}
func (s *stubConversationStore) SoftDelete(ctx context.Context, id string) error { return nil }

func (s *stubConversationStore) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if len(s.deleted) > limit {
		return s.deleted[:limit], nil
	}
	return s.deleted, nil
}

func (s *stubConversationStore) Purge(ctx context.Context, id string) error {
	if err, ok := s.purgeErrFor[id]; ok {
		return err
	}
	s.mu.Lock()
	s.purged = append(s.purged, id)
	s.mu.Unlock()
	return nil
}

// purgedIDs читает результат под мьютексом: Purge зовётся из воркеров пула.
func (s *stubConversationStore) purgedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.purged...)
}

type stubMessageStore struct {
	delivered int64
	counts    map[models.MessageStatus]int64
}

func (s *stubMessageStore) Create(ctx context.Context, c, snd, content string) (*models.Message, error) {
	return nil, nil
}
func (s *stubMessageStore) GetByID(ctx context.Context, id string) (*models.Message, error) {
	return nil, repository.ErrMessageNotFound
}
func (s *stubMessageStore) ListByConversation(ctx context.Context, id string) ([]models.Message, error) {
	return nil, nil
}
func (s *stubMessageStore) UpdateStatus(ctx context.Context, id string, st models.MessageStatus) error {
	return nil
}
func (s *stubMessageStore) Delete(ctx context.Context, id string) error { return nil }

func (s *stubMessageStore) MarkDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.delivered, nil
}

func (s *stubMessageStore) CountByStatus(ctx context.Context) (map[models.MessageStatus]int64, error) {
	return s.counts, nil
}

var (
	_ repository.ConversationStore = (*stubConversationStore)(nil)
	_ repository.MessageStore      = (*stubMessageStore)(nil)
)

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		TickInterval:   time.Minute,
		PurgeRetention: 30 * 24 * time.Hour,
		SweepStale:     24 * time.Hour,
		Workers:        1,
		QueueSize:      8,
		MaxRetries:     0,
	}
}

func TestPurgeDeletedConversations(t *testing.T) {
	convStore := &stubConversationStore{deleted: []string{"conv-1", "conv-2"}}
	sched := New(testConfig(), convStore, &stubMessageStore{}, nil, nil)

	if err := sched.purgeDeletedConversations(context.Background(), time.Now()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got := convStore.purgedIDs(); len(got) != 2 {
		t.Fatalf("expected 2 purged conversations, got %v", got)
	}
}

func TestPurgeContinuesAfterFailure(t *testing.T) {
	convStore := &stubConversationStore{
		deleted:     []string{"conv-bad", "conv-ok"},
		purgeErrFor: map[string]error{"conv-bad": repository.ErrConversationNotFound},
	}
	sched := New(testConfig(), convStore, &stubMessageStore{}, nil, nil)

	if err := sched.purgeDeletedConversations(context.Background(), time.Now()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got := convStore.purgedIDs(); len(got) != 1 || got[0] != "conv-ok" {
		t.Fatalf("expected conv-ok purged despite failure, got %v", got)
	}
}

func TestSweepDelivery(t *testing.T) {
	msgStore := &stubMessageStore{delivered: 7}
	sched := New(testConfig(), &stubConversationStore{}, msgStore, nil, nil)

	if err := sched.sweepDelivery(context.Background(), time.Now()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

func TestSnapshotStatsWithoutCache(t *testing.T) {
	sched := New(testConfig(), &stubConversationStore{}, &stubMessageStore{}, nil, nil)

	// Без Redis снимок статистики просто пропускается
	if err := sched.snapshotStats(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}

func TestSchedulerTickSubmitsJobs(t *testing.T) {
	pool := worker.NewPool(1, 8, 0)
	pool.Start()
	defer pool.Shutdown(time.Second)

	convStore := &stubConversationStore{deleted: []string{"conv-1"}}
	sched := New(testConfig(), convStore, &stubMessageStore{}, nil, pool)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	sched.Start(ctx, &wg)

	// Первый проход выполняется сразу при старте
	deadline := time.After(2 * time.Second)
	for len(convStore.purgedIDs()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("purge job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	wg.Wait()
}
