package bot

import (
	"context"
	"sync"
	"time"

	"github.com/taskmate/tmbot/internal/chat"
)

const (
	queueDepth  = 16
	idleTimeout = 2 * time.Minute
)

// HandleFunc processes one update.
type HandleFunc func(ctx context.Context, u chat.Update)

// Queue runs one worker per chat so updates of a chat are handled in
// arrival order, while a shared semaphore bounds how many chats are
// handled at once. Idle workers exit.
type Queue struct {
	ctx    context.Context
	sem    chan struct{}
	handle HandleFunc
	idle   time.Duration

	mu      sync.Mutex
	workers map[int64]*chatWorker
	wg      sync.WaitGroup
}

type chatWorker struct {
	jobs    chan chat.Update
	pending int
}

// NewQueue creates a queue whose workers live until ctx is done.
func NewQueue(ctx context.Context, concurrency int, handle HandleFunc) *Queue {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Queue{
		ctx:     ctx,
		sem:     make(chan struct{}, concurrency),
		handle:  handle,
		idle:    idleTimeout,
		workers: make(map[int64]*chatWorker),
	}
}

// Enqueue hands u to its chat's worker, starting one if needed. It blocks
// while the worker's buffer is full.
func (q *Queue) Enqueue(ctx context.Context, u chat.Update) error {
	q.mu.Lock()
	w, ok := q.workers[u.ChatID]
	if !ok {
		w = &chatWorker{jobs: make(chan chat.Update, queueDepth)}
		q.workers[u.ChatID] = w
		q.wg.Add(1)
		go q.run(u.ChatID, w)
	}
	w.pending++
	q.mu.Unlock()

	select {
	case w.jobs <- u:
		return nil
	case <-ctx.Done():
		q.release(w)
		return ctx.Err()
	case <-q.ctx.Done():
		q.release(w)
		return q.ctx.Err()
	}
}

// Wait blocks until every worker has exited. Call after cancelling the
// queue context.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) release(w *chatWorker) {
	q.mu.Lock()
	w.pending--
	q.mu.Unlock()
}

func (q *Queue) run(chatID int64, w *chatWorker) {
	defer q.wg.Done()
	defer q.forget(chatID, w)
	idle := time.NewTimer(q.idle)
	defer idle.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case u := <-w.jobs:
			q.release(w)
			select {
			case q.sem <- struct{}{}:
			case <-q.ctx.Done():
				return
			}
			func() {
				defer func() { <-q.sem }()
				q.handle(q.ctx, u)
			}()
			idle.Reset(q.idle)
		case <-idle.C:
			q.mu.Lock()
			quit := w.pending == 0 && len(w.jobs) == 0
			if quit {
				delete(q.workers, chatID)
			}
			q.mu.Unlock()
			if quit {
				return
			}
			idle.Reset(q.idle)
		}
	}
}

// forget unregisters w unless a newer worker already took its place.
func (q *Queue) forget(chatID int64, w *chatWorker) {
	q.mu.Lock()
	if q.workers[chatID] == w {
		delete(q.workers, chatID)
	}
	q.mu.Unlock()
}

// Workers returns the number of live chat workers.
func (q *Queue) Workers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.workers)
}
