package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/goleador/traffilink-dispatch/utils"
)

// MockTraffilinkClient is an in-memory provider used in tests and when
// the provider mode is "mock". Calls are recorded and results can be
// scripted per call.
type MockTraffilinkClient struct {
	mu sync.Mutex

	Balance      BalanceInfo
	SendRequests []SendRequest
	TaskRequests []TaskRequest
	Reports      map[string][]ReportEntry
	Incoming     []IncomingMessage
	Jobs         map[string]*JobStatus

	// FailCodes queues a status code per upcoming SendSMS call; zero
	// entries succeed. When exhausted, calls succeed.
	FailCodes []int

	sendCounter int
	jobCounter  int
}

// NewMockTraffilinkClient creates a mock with a default balance.
func NewMockTraffilinkClient() *MockTraffilinkClient {
	return &MockTraffilinkClient{
		Balance: BalanceInfo{Account: "mock", Balance: 1000, GiftBalance: 50},
		Reports: make(map[string][]ReportEntry),
		Jobs:    make(map[string]*JobStatus),
	}
}

func (m *MockTraffilinkClient) GetBalance(ctx context.Context) (*BalanceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance := m.Balance
	return &balance, nil
}

func (m *MockTraffilinkClient) SendSMS(ctx context.Context, req SendRequest) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SendRequests = append(m.SendRequests, req)

	if len(m.FailCodes) > 0 {
		code := m.FailCodes[0]
		m.FailCodes = m.FailCodes[1:]
		if code != utils.CodeSuccess {
			return nil, NewProviderError(code)
		}
	}

	if len(req.Numbers) == 0 || len(req.Numbers) > utils.SMSLimitPOST {
		return nil, NewProviderError(utils.CodeInvalidRecipient)
	}

	m.sendCounter++
	return &SendResult{
		BatchID:  fmt.Sprintf("mock-batch-%d", m.sendCounter),
		Accepted: len(req.Numbers),
		Cost:     float64(len(req.Numbers)) * 0.5,
	}, nil
}

func (m *MockTraffilinkClient) GetReport(ctx context.Context, batchID string, page int) ([]ReportEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.Reports[batchID]
	if page < 1 {
		page = 1
	}
	start := (page - 1) * utils.ReportBatchLimit
	if start >= len(entries) {
		return nil, nil
	}
	end := start + utils.ReportBatchLimit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], nil
}

func (m *MockTraffilinkClient) GetIncomingSMS(ctx context.Context, limit int) ([]IncomingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > utils.IncomingSMSLimit {
		limit = utils.IncomingSMSLimit
	}
	if limit > len(m.Incoming) {
		limit = len(m.Incoming)
	}
	out := make([]IncomingMessage, limit)
	copy(out, m.Incoming[:limit])
	return out, nil
}

func (m *MockTraffilinkClient) CreateTask(ctx context.Context, req TaskRequest) (*TaskAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TaskRequests = append(m.TaskRequests, req)

	if len(req.Numbers) == 0 || len(req.Numbers) > utils.SMSLimitPOST {
		return nil, NewProviderError(utils.CodeInvalidRecipient)
	}

	m.jobCounter++
	jobID := fmt.Sprintf("mock-job-%d", m.jobCounter)
	m.Jobs[jobID] = &JobStatus{
		JobID:     jobID,
		State:     "scheduled",
		Total:     len(req.Numbers),
		Remaining: len(req.Numbers),
	}
	return &TaskAck{JobID: jobID}, nil
}

func (m *MockTraffilinkClient) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.Jobs[jobID]
	if !ok {
		return nil, NewProviderError(utils.CodeServiceUnavailable)
	}
	out := *job
	return &out, nil
}

// SentCount returns the number of SendSMS calls recorded.
func (m *MockTraffilinkClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SendRequests)
}
