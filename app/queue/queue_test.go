package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goleador/traffilink-dispatch/app/dto"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
)

// fakeDispatch records sent contents in order and fails when err is set.
type fakeDispatch struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeDispatch) Send(ctx context.Context, req *dto.SendSMSRequest, metadata *businessflow.ClientMetadata) (*dto.SendSMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req.Content)
	return &dto.SendSMSResponse{SentBatches: 1}, nil
}

func (f *fakeDispatch) GetBalance(ctx context.Context) (*dto.BalanceResponse, error) {
	return &dto.BalanceResponse{}, nil
}

func (f *fakeDispatch) Statistics() dto.DispatchStatistics { return dto.DispatchStatistics{} }
func (f *fakeDispatch) ResetStatistics()                   {}

func (f *fakeDispatch) sentContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func request(content string) *dto.SendSMSRequest {
	return &dto.SendSMSRequest{Numbers: []string{"+989123456789"}, Content: content}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityUrgent, ParsePriority("urgent"))
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityNormal, ParsePriority("normal"))
	assert.Equal(t, PriorityNormal, ParsePriority("whatever"))
	assert.Equal(t, "urgent", PriorityUrgent.String())
}

func TestOrdersByPriorityThenFIFO(t *testing.T) {
	q := NewSendQueue(&fakeDispatch{}, Config{}, nil)

	_, err := q.Enqueue(request("normal-1"), PriorityNormal)
	require.NoError(t, err)
	_, err = q.Enqueue(request("urgent-1"), PriorityUrgent)
	require.NoError(t, err)
	_, err = q.Enqueue(request("normal-2"), PriorityNormal)
	require.NoError(t, err)
	_, err = q.Enqueue(request("low-1"), PriorityLow)
	require.NoError(t, err)
	_, err = q.Enqueue(request("high-1"), PriorityHigh)
	require.NoError(t, err)

	var order []string
	for item := q.pop(); item != nil; item = q.pop() {
		order = append(order, item.Request.Content)
	}
	assert.Equal(t, []string{"urgent-1", "high-1", "normal-1", "normal-2", "low-1"}, order)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	q := NewSendQueue(&fakeDispatch{}, Config{Capacity: 2}, nil)

	_, err := q.Enqueue(request("a"), PriorityNormal)
	require.NoError(t, err)
	_, err = q.Enqueue(request("b"), PriorityNormal)
	require.NoError(t, err)

	_, err = q.Enqueue(request("c"), PriorityNormal)
	require.Error(t, err)
	assert.True(t, businessflow.IsQueueFull(err))
}

func TestEnqueueRejectsAfterStop(t *testing.T) {
	q := NewSendQueue(&fakeDispatch{}, Config{RatePerSecond: 1000}, nil)
	stop := q.Start(context.Background())
	stop()

	_, err := q.Enqueue(request("late"), PriorityNormal)
	require.Error(t, err)
	assert.True(t, businessflow.IsQueueStopped(err))
}

func TestWorkerProcessesItems(t *testing.T) {
	dispatch := &fakeDispatch{}
	q := NewSendQueue(dispatch, Config{RatePerSecond: 1000}, nil)
	stop := q.Start(context.Background())
	defer stop()

	item, err := q.Enqueue(request("first"), PriorityNormal)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "normal", item.Priority.String())

	_, err = q.Enqueue(request("second"), PriorityNormal)
	require.NoError(t, err)

	waitFor(t, func() bool { return q.Stats().Processed == 2 })

	stats := q.Stats()
	assert.Equal(t, 0, stats.Depth)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, []string{"first", "second"}, dispatch.sentContents())
}

func TestRetriesUntilAttemptsExhausted(t *testing.T) {
	dispatch := &fakeDispatch{err: errors.New("provider down")}
	q := NewSendQueue(dispatch, Config{MaxAttempts: 3, RatePerSecond: 1000}, nil)
	stop := q.Start(context.Background())
	defer stop()

	_, err := q.Enqueue(request("doomed"), PriorityHigh)
	require.NoError(t, err)

	waitFor(t, func() bool { return q.Stats().Failed == 1 })

	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Retried)
	assert.Equal(t, int64(0), stats.Processed)
	assert.Equal(t, 0, stats.Depth)
}

// blockingDispatch holds a send open until released and records the
// context state the send observed.
type blockingDispatch struct {
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr error
}

func (d *blockingDispatch) Send(ctx context.Context, req *dto.SendSMSRequest, metadata *businessflow.ClientMetadata) (*dto.SendSMSResponse, error) {
	d.started <- struct{}{}
	<-d.release
	d.mu.Lock()
	d.ctxErr = ctx.Err()
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &dto.SendSMSResponse{SentBatches: 1}, nil
}

func (d *blockingDispatch) GetBalance(ctx context.Context) (*dto.BalanceResponse, error) {
	return &dto.BalanceResponse{}, nil
}

func (d *blockingDispatch) Statistics() dto.DispatchStatistics { return dto.DispatchStatistics{} }
func (d *blockingDispatch) ResetStatistics()                   {}

func TestStopDoesNotAbortInFlightSend(t *testing.T) {
	dispatch := &blockingDispatch{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	q := NewSendQueue(dispatch, Config{RatePerSecond: 1000}, nil)
	stop := q.Start(context.Background())

	_, err := q.Enqueue(request("in flight"), PriorityNormal)
	require.NoError(t, err)

	<-dispatch.started

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	// let the shutdown cancellation propagate before finishing the send
	time.Sleep(50 * time.Millisecond)
	close(dispatch.release)
	<-stopped

	dispatch.mu.Lock()
	ctxErr := dispatch.ctxErr
	dispatch.mu.Unlock()
	require.NoError(t, ctxErr)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestRequeueDuringShutdownKeepsItemPending(t *testing.T) {
	q := NewSendQueue(&fakeDispatch{}, Config{}, nil)
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	item := &Item{ID: "racer", Request: request("retry later"), Priority: PriorityNormal, Attempts: 1}
	require.True(t, q.requeue(item))
	assert.Equal(t, 1, q.Stats().Depth)

	// new submissions are still rejected
	_, err := q.Enqueue(request("late"), PriorityNormal)
	require.Error(t, err)
	assert.True(t, businessflow.IsQueueStopped(err))
}

func TestStatsReportsDepthByPriority(t *testing.T) {
	q := NewSendQueue(&fakeDispatch{}, Config{}, nil)

	_, _ = q.Enqueue(request("a"), PriorityUrgent)
	_, _ = q.Enqueue(request("b"), PriorityNormal)
	_, _ = q.Enqueue(request("c"), PriorityNormal)

	stats := q.Stats()
	assert.Equal(t, 3, stats.Depth)
	assert.Equal(t, 1, stats.ByPriority["urgent"])
	assert.Equal(t, 2, stats.ByPriority["normal"])
}
