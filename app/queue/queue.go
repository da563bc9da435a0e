// Package queue provides the prioritized outbound send queue.
package queue

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goleador/traffilink-dispatch/app/dto"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
	"github.com/goleador/traffilink-dispatch/utils"
)

// Priority orders queue items. Lower values are served first.
type Priority int

const (
	PriorityUrgent Priority = 0
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

// String returns the priority name used on the wire.
func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ParsePriority maps a wire name to a priority. Unknown names map to
// normal.
func ParsePriority(name string) Priority {
	switch name {
	case "urgent":
		return PriorityUrgent
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Item is one queued send request.
type Item struct {
	ID       string
	Request  *dto.SendSMSRequest
	Priority Priority
	Attempts int

	seq uint64
}

// itemHeap orders by priority, FIFO within a priority via the
// monotonically increasing sequence number.
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(*Item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var (
	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sms_queue_depth",
		Help: "Number of items waiting in the send queue",
	})
	queueProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sms_queue_processed_total",
		Help: "Total queue items sent successfully",
	})
	queueFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sms_queue_failed_total",
		Help: "Total queue items that exhausted their attempts",
	})
)

func newItemID() string {
	return uuid.New().String()
}

// Config tunes the queue.
type Config struct {
	Capacity    int
	Workers     int
	MaxAttempts int
	// RatePerSecond caps sends across all workers.
	RatePerSecond float64
}

// SendQueue is a bounded priority queue with a worker pool and a shared
// approximate rate limiter.
type SendQueue struct {
	dispatch businessflow.DispatchFlow
	logger   *log.Logger

	capacity    int
	workers     int
	maxAttempts int
	minGap      time.Duration

	mu      sync.Mutex
	items   itemHeap
	seq     uint64
	stopped bool

	notify chan struct{}

	sendMu   sync.Mutex
	lastSend time.Time

	statsMu   sync.Mutex
	processed int64
	failed    int64
	retried   int64

	wg sync.WaitGroup
}

// NewSendQueue creates a queue. Zero config fields fall back to the
// defaults.
func NewSendQueue(dispatch businessflow.DispatchFlow, cfg Config, logger *log.Logger) *SendQueue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = utils.DefaultQueueCapacity
	}
	if cfg.Workers <= 0 {
		cfg.Workers = utils.DefaultQueueWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = utils.DefaultQueueMaxAttempts
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = utils.DefaultQueueRate
	}
	return &SendQueue{
		dispatch:    dispatch,
		logger:      logger,
		capacity:    cfg.Capacity,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		minGap:      time.Duration(float64(time.Second) / cfg.RatePerSecond),
		notify:      make(chan struct{}, 1),
	}
}

// Enqueue adds a request. It fails when the queue is at capacity or
// stopped.
func (q *SendQueue) Enqueue(req *dto.SendSMSRequest, priority Priority) (*Item, error) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, businessflow.ErrQueueStopped
	}
	if q.items.Len() >= q.capacity {
		q.mu.Unlock()
		return nil, businessflow.ErrQueueFull
	}
	q.seq++
	item := &Item{
		ID:       newItemID(),
		Request:  req,
		Priority: priority,
		seq:      q.seq,
	}
	heap.Push(&q.items, item)
	queueDepthGauge.Set(float64(q.items.Len()))
	q.mu.Unlock()

	q.wake()
	return item, nil
}

func (q *SendQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *SendQueue) pop() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*Item)
	queueDepthGauge.Set(float64(q.items.Len()))
	return item
}

// requeue puts a failed item back at the tail of its priority band.
// Requeueing is allowed during shutdown so a racing item stays pending
// instead of being recorded as permanently failed.
func (q *SendQueue) requeue(item *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() >= q.capacity {
		return false
	}
	q.seq++
	item.seq = q.seq
	heap.Push(&q.items, item)
	queueDepthGauge.Set(float64(q.items.Len()))
	return true
}

// Start launches the worker pool and returns a stop function that
// drains in-flight work.
func (q *SendQueue) Start(ctx context.Context) func() {
	workerCtx, cancel := context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(workerCtx, i)
	}
	if q.logger != nil {
		q.logger.Printf("queue started: workers=%d capacity=%d maxAttempts=%d", q.workers, q.capacity, q.maxAttempts)
	}
	return func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		cancel()
		q.wg.Wait()
	}
}

func (q *SendQueue) runWorker(ctx context.Context, id int) {
	defer q.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}

		for {
			item := q.pop()
			if item == nil {
				break
			}
			q.throttle()
			q.process(ctx, item)
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// throttle enforces the shared minimum gap between sends. The gap is
// approximate: workers race on the timestamp only within the lock.
func (q *SendQueue) throttle() {
	q.sendMu.Lock()
	elapsed := time.Since(q.lastSend)
	if elapsed < q.minGap {
		time.Sleep(q.minGap - elapsed)
	}
	q.lastSend = time.Now()
	q.sendMu.Unlock()
}

func (q *SendQueue) process(ctx context.Context, item *Item) {
	item.Attempts++
	// shutdown stops workers from picking up new items; an in-flight
	// provider call is allowed to finish
	_, err := q.dispatch.Send(context.WithoutCancel(ctx), item.Request, nil)
	if err == nil {
		queueProcessedTotal.Inc()
		q.statsMu.Lock()
		q.processed++
		q.statsMu.Unlock()
		return
	}

	if item.Attempts < q.maxAttempts && q.requeue(item) {
		q.statsMu.Lock()
		q.retried++
		q.statsMu.Unlock()
		if q.logger != nil {
			q.logger.Printf("queue item %s failed (attempt %d/%d), requeued: %v", item.ID, item.Attempts, q.maxAttempts, err)
		}
		return
	}

	queueFailedTotal.Inc()
	q.statsMu.Lock()
	q.failed++
	q.statsMu.Unlock()
	if q.logger != nil {
		q.logger.Printf("queue item %s failed permanently after %d attempts: %v", item.ID, item.Attempts, err)
	}
}

// Stats returns a snapshot of queue depth and counters.
func (q *SendQueue) Stats() dto.QueueStatistics {
	q.mu.Lock()
	byPriority := make(map[string]int, 4)
	for _, item := range q.items {
		byPriority[item.Priority.String()]++
	}
	depth := q.items.Len()
	q.mu.Unlock()

	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return dto.QueueStatistics{
		Depth:      depth,
		ByPriority: byPriority,
		Processed:  q.processed,
		Failed:     q.failed,
		Retried:    q.retried,
	}
}
