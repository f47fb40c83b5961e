package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-service/internal/cache"
	"chat-service/internal/config"
	"chat-service/internal/repository"
	"chat-service/internal/utils"
	"chat-service/internal/worker"
)

// Размер пачки диалогов, которую чистим за один тик.
const purgeBatchSize = 100

// Scheduler — периодические фоновые задачи сервиса. Каждый тик ставит
// задачи в пул воркеров; если очередь забита, тик пропускается, работа
// догонится на следующем.
type Scheduler struct {
	cfg              config.SchedulerConfig
	conversationRepo repository.ConversationStore
	messageRepo      repository.MessageStore
	cache            *cache.RedisCache
	pool             *worker.Pool
}

func New(
	cfg config.SchedulerConfig,
	conversationRepo repository.ConversationStore,
	messageRepo repository.MessageStore,
	redisCache *cache.RedisCache,
	pool *worker.Pool,
) *Scheduler {
	utils.LogSuccess("Scheduler", "Инициализирован планировщик (тик %s)", cfg.TickInterval)
	return &Scheduler{
		cfg:              cfg,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		cache:            redisCache,
		pool:             pool,
	}
}

// Start запускает цикл тиков. Первый проход выполняется сразу,
// не дожидаясь первого тика.
func (s *Scheduler) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()

		utils.LogInfo("Scheduler", "Планировщик запущен")
		s.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				utils.LogInfo("Scheduler", "Планировщик остановлен")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	s.submit(worker.Job{
		ID:   fmt.Sprintf("purge-%d", now.Unix()),
		Task: func() error { return s.purgeDeletedConversations(ctx, now) },
	})

	s.submit(worker.Job{
		ID:   fmt.Sprintf("sweep-%d", now.Unix()),
		Task: func() error { return s.sweepDelivery(ctx, now) },
	})

	s.submit(worker.Job{
		ID:   fmt.Sprintf("stats-%d", now.Unix()),
		Task: func() error { return s.snapshotStats(ctx) },
	})
}

func (s *Scheduler) submit(job worker.Job) {
	if err := s.pool.Submit(job); err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			utils.LogWarning("Scheduler", "Очередь заполнена, задача %s пропущена", job.ID)
			return
		}
		utils.LogError("Scheduler", fmt.Sprintf("Не удалось поставить задачу %s", job.ID), err)
	}
}

// purgeDeletedConversations окончательно удаляет диалоги, помеченные
// удалёнными дольше срока хранения, вместе с их сообщениями.
func (s *Scheduler) purgeDeletedConversations(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.cfg.PurgeRetention)

	ids, err := s.conversationRepo.ListDeletedBefore(ctx, cutoff, purgeBatchSize)
	if err != nil {
		return fmt.Errorf("list deleted conversations: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	purged := 0
	for _, id := range ids {
		if err := s.conversationRepo.Purge(ctx, id); err != nil {
			// Одна неудача не останавливает проход по пачке.
			utils.LogError("Scheduler", fmt.Sprintf("Ошибка очистки диалога %s", id), err)
			continue
		}
		if s.cache != nil {
			s.cache.Delete(ctx, cache.ConversationKey(id), cache.MessageHistoryKey(id))
		}
		purged++
	}

	utils.LogSuccess("Scheduler", "Очищено диалогов: %d из %d", purged, len(ids))
	return nil
}

// sweepDelivery переводит залежавшиеся сообщения из SENT в DELIVERED.
func (s *Scheduler) sweepDelivery(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.cfg.SweepStale)

	affected, err := s.messageRepo.MarkDeliveredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	if affected > 0 {
		utils.LogSuccess("Scheduler", "Помечено доставленными сообщений: %d", affected)
	}
	return nil
}

// snapshotStats снимает распределение сообщений по статусам и кладёт его
// в Redis для внешнего мониторинга.
func (s *Scheduler) snapshotStats(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	counts, err := s.messageRepo.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count by status: %w", err)
	}

	snapshot := map[string]interface{}{
		"taken_at": time.Now().UTC(),
		"counts":   counts,
	}

	if err := s.cache.SetJSON(ctx, cache.MessageStatsKey(), snapshot, cache.MessageStatsTTL); err != nil {
		return fmt.Errorf("store stats snapshot: %w", err)
	}

	utils.LogDebug("Scheduler", "Снимок статистики сообщений обновлён")
	return nil
}
