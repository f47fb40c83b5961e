package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-service/internal/utils"
)

var (
	ErrQueueFull       = errors.New("очередь задач переполнена")
	ErrPoolClosed      = errors.New("пул уже остановлен")
	ErrShutdownTimeout = errors.New("превышен таймаут остановки пула")
)

// Job — единица фоновой работы (инвалидация кеша, задача планировщика).
type Job struct {
	ID      string
	Task    func() error
	RetryOn func(error) bool // нужна ли повторная попытка для данной ошибки
	OnDone  func(error)      // callback после завершения
}

// Pool — пул воркеров с ограниченной очередью и повторами.
type Pool struct {
	workers    int
	jobQueue   chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	stats      Stats
	maxRetries int

	// closeMu упорядочивает отправку в очередь относительно её закрытия:
	// Submit держит RLock на время отправки, Shutdown закрывает под Lock.
	closeMu sync.RWMutex
	closed  bool
}

type Stats struct {
	TotalJobs     int64
	CompletedJobs int64
	FailedJobs    int64
	ActiveWorkers int
	QueuedJobs    int
}

func NewPool(workers, queueSize, maxRetries int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: maxRetries,
		stats: Stats{
			ActiveWorkers: workers,
		},
	}

	utils.LogInfo("WorkerPool", "Создан пул: воркеров %d, очередь %d, повторов %d", workers, queueSize, maxRetries)

	return pool
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	utils.LogSuccess("WorkerPool", "Все воркеры запущены")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			utils.LogInfo("WorkerPool", "Воркер #%d завершает работу", id)
			return

		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}

			p.updateQueued(-1)
			p.executeJob(id, job)
		}
	}
}

// executeJob выполняет задачу, повторяя её при ошибках с растущей задержкой.
func (p *Pool) executeJob(workerID int, job Job) {
	startTime := time.Now()
	var err error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			utils.LogWarning("WorkerPool", "Воркер #%d: повторная попытка #%d для задачи %s", workerID, attempt, job.ID)
			time.Sleep(time.Millisecond * time.Duration(100*attempt))
		}

		err = job.Task()

		if err == nil {
			p.markCompleted()
			utils.LogDebug("WorkerPool", "Воркер #%d: задача %s выполнена за %v", workerID, job.ID, time.Since(startTime))

			if job.OnDone != nil {
				job.OnDone(nil)
			}
			return
		}

		if job.RetryOn != nil && !job.RetryOn(err) {
			break
		}
	}

	p.markFailed()
	utils.LogError("WorkerPool", fmt.Sprintf("Воркер #%d: задача %s провалилась после %v", workerID, job.ID, time.Since(startTime)), err)

	if job.OnDone != nil {
		job.OnDone(err)
	}
}

// Submit добавляет задачу без блокировки; при полной очереди возвращает
// ErrQueueFull, после Shutdown — ErrPoolClosed. Решение остаётся за
// вызывающим.
func (p *Pool) Submit(job Job) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return context.Canceled

	case p.jobQueue <- job:
		p.updateQueued(1)
		return nil

	default:
		utils.LogWarning("WorkerPool", "Очередь переполнена, задача %s отклонена", job.ID)
		return ErrQueueFull
	}
}

// SubmitBlocking добавляет задачу, ожидая места в очереди.
func (p *Pool) SubmitBlocking(job Job) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return context.Canceled

	case p.jobQueue <- job:
		p.updateQueued(1)
		return nil
	}
}

// Shutdown закрывает очередь и ждёт завершения воркеров не дольше timeout.
func (p *Pool) Shutdown(timeout time.Duration) error {
	utils.LogInfo("WorkerPool", "Остановка пула воркеров...")

	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobQueue)
	p.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		utils.LogSuccess("WorkerPool", "Все воркеры завершили работу")
		return nil

	case <-time.After(timeout):
		p.cancel()
		utils.LogWarning("WorkerPool", "Превышен таймаут остановки, принудительное завершение")
		return ErrShutdownTimeout
	}
}

func (p *Pool) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.QueuedJobs = len(p.jobQueue)
	return stats
}

func (p *Pool) updateQueued(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.QueuedJobs += delta
	if delta > 0 {
		p.stats.TotalJobs++
	}
}

func (p *Pool) markCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.CompletedJobs++
}

func (p *Pool) markFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.FailedJobs++
}
