package daemon

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// TaskQueue holds enforcement tasks ordered by the time they become ready,
// FIFO among equal deadlines. It is safe for concurrent producers and consumers.
type TaskQueue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
	wake  chan struct{}
	now   func() time.Time
}

// NewTaskQueue creates an empty queue on the wall clock.
func NewTaskQueue() *TaskQueue {
	return newTaskQueue(time.Now)
}

func newTaskQueue(now func() time.Time) *TaskQueue {
	return &TaskQueue{
		wake: make(chan struct{}, 1),
		now:  now,
	}
}

// AddImmediateOperation queues a task that is ready now.
func (q *TaskQueue) AddImmediateOperation(task domain.Task) {
	q.push(task, 0)
}

// AddDelayedOperation queues a task that becomes ready after delay.
func (q *TaskQueue) AddDelayedOperation(task domain.Task, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	q.push(task, delay)
}

func (q *TaskQueue) push(task domain.Task, delay time.Duration) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, &queued{task: task, readyAt: q.now().Add(delay), seq: q.seq})
	q.mu.Unlock()
	q.signal()
}

func (q *TaskQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks, ready or not.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Next blocks until a task is ready or ctx is done.
func (q *TaskQueue) Next(ctx context.Context) (domain.Task, error) {
	for {
		q.mu.Lock()
		wait := time.Duration(-1)
		if len(q.items) > 0 {
			head := q.items[0]
			now := q.now()
			if !head.readyAt.After(now) {
				heap.Pop(&q.items)
				more := len(q.items) > 0 && !q.items[0].readyAt.After(now)
				q.mu.Unlock()
				if more {
					// Hand the next ready task to another idle worker.
					q.signal()
				}
				return head.task, nil
			}
			wait = head.readyAt.Sub(now)
		}
		q.mu.Unlock()

		var timer *time.Timer
		var fire <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return domain.Task{}, ctx.Err()
		case <-q.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

type queued struct {
	task    domain.Task
	readyAt time.Time
	seq     uint64
}

// taskHeap implements heap.Interface.
type taskHeap []*queued

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].readyAt.Before(h[j].readyAt)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*queued)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
