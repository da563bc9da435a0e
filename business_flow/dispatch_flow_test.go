package businessflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/services"
	"github.com/goleador/traffilink-dispatch/utils"
)

func newTestDispatchFlow(provider services.TraffilinkClient) DispatchFlow {
	return NewDispatchFlow(provider, services.NewMessageProcessor(), nil, nil, nil, nil)
}

func TestSendHappyPath(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	resp, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789", "+989123456780"},
		Content: "hello there",
		Sender:  "5000",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Fragments)
	assert.Equal(t, 2, resp.Recipients)
	assert.Equal(t, 1, resp.SentBatches)
	assert.Equal(t, 0, resp.FailedBatches)
	assert.Len(t, resp.BatchIDs, 1)
	assert.Len(t, resp.SMSIDs, 1)
	assert.Equal(t, 1, mock.SentCount())

	stats := flow.Statistics()
	assert.Equal(t, int64(2), stats.MessagesSent)
	assert.Equal(t, int64(1), stats.BatchesSent)
}

func TestSendDropsInvalidNumbers(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	resp, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789", "bogus", "+989123456789"},
		Content: "hello",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Recipients)
	require.Len(t, resp.InvalidNumbers, 1)
	assert.Equal(t, "bogus", resp.InvalidNumbers[0].Number)
	assert.Equal(t, int64(1), flow.Statistics().InvalidNumbers)
}

func TestSendCountsRemovedDuplicates(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	resp, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789", "+98 912 345 6789", "+989123456780", "+989123456789"},
		Content: "hello",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Recipients)
	assert.Equal(t, 2, resp.DuplicatesRemoved)
	assert.Equal(t, int64(2), flow.Statistics().DuplicatesRemoved)

	// cumulative across calls
	_, err = flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789", "+989123456789"},
		Content: "hello again",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), flow.Statistics().DuplicatesRemoved)
}

func TestSendRejectsControlCharacters(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: "short\x00msg",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsSensitiveContent(err))

	// content long enough to fragment is checked the same way
	long := strings.Repeat("x ", 700) + "bad\x00word"
	_, err = flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: long,
	}, nil)
	require.Error(t, err)
	assert.True(t, IsSensitiveContent(err))
	assert.Zero(t, mock.SentCount())
}

func TestSendNoValidNumbers(t *testing.T) {
	flow := newTestDispatchFlow(services.NewMockTraffilinkClient())

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"abc", ""},
		Content: "hello",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsNoValidNumbers(err))
}

func TestSendEmptyContent(t *testing.T) {
	flow := newTestDispatchFlow(services.NewMockTraffilinkClient())

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: "   ",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsEmptyContent(err))
}

func TestSendInvalidSendTime(t *testing.T) {
	flow := newTestDispatchFlow(services.NewMockTraffilinkClient())

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers:  []string{"+989123456789"},
		Content:  "hello",
		SendTime: "tomorrow",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidSendTime(err))
}

func TestSendFragmentsLongContent(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	content := strings.Repeat("word ", 500) // ~2500 chars, 3 fragments
	resp, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: content,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Fragments)
	assert.Equal(t, 3, resp.SentBatches)
	assert.Equal(t, 3, mock.SentCount())
	for _, req := range mock.SendRequests {
		assert.LessOrEqual(t, len([]rune(req.Content)), utils.MaxMessageLength)
	}
}

func TestSendPartialBatchFailureSucceeds(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	// first fragment fails, second succeeds
	mock.FailCodes = []int{utils.CodeServiceUnavailable, utils.CodeSuccess}
	flow := newTestDispatchFlow(mock)

	content := strings.Repeat("x ", 700) // 2 fragments at the 1024 limit
	resp, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: content,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.SentBatches)
	assert.Equal(t, 1, resp.FailedBatches)

	stats := flow.Statistics()
	assert.Equal(t, int64(1), stats.BatchesSent)
	assert.Equal(t, int64(1), stats.BatchesFailed)
}

func TestSendAllBatchesFailed(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	mock.FailCodes = []int{utils.CodeInsufficientCredit}
	flow := newTestDispatchFlow(mock)

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: "hello",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsAllBatchesFailed(err))
	assert.Equal(t, int64(1), flow.Statistics().BatchesFailed)
}

func TestSendAppliesProcessingOptions(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: "Hi {{name}}",
		Options: &dto.ProcessOptionsDTO{
			Variables: map[string]string{"name": "Sara"},
			Prefix:    "[ACME]",
		},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 1, mock.SentCount())
	assert.Equal(t, "[ACME] Hi Sara", mock.SendRequests[0].Content)
}

func TestGetBalanceWithoutCache(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	mock.Balance = services.BalanceInfo{Account: "acme", Balance: 100, GiftBalance: 25}
	flow := newTestDispatchFlow(mock)

	resp, err := flow.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme", resp.Account)
	assert.InDelta(t, 125, resp.Total, 0.001)
	assert.False(t, resp.Cached)
}

func TestResetStatistics(t *testing.T) {
	mock := services.NewMockTraffilinkClient()
	flow := newTestDispatchFlow(mock)

	_, err := flow.Send(context.Background(), &dto.SendSMSRequest{
		Numbers: []string{"+989123456789"},
		Content: "hello",
	}, nil)
	require.NoError(t, err)
	require.NotZero(t, flow.Statistics().MessagesSent)

	flow.ResetStatistics()
	assert.Zero(t, flow.Statistics().MessagesSent)
}
