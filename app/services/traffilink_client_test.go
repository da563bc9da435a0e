package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goleador/traffilink-dispatch/config"
	"github.com/goleador/traffilink-dispatch/utils"
)

func newTestClient(baseURL string) TraffilinkClient {
	return NewHTTPTraffilinkClient(config.TraffilinkConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
	})
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	payload := map[string]any{"status": status, "message": "", "data": data}
	_ = json.NewEncoder(w).Encode(payload)
}

func TestGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getbalance", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		writeEnvelope(w, 0, BalanceInfo{Account: "acme", Balance: 120.5, GiftBalance: 10})
	}))
	defer server.Close()

	balance, err := newTestClient(server.URL).GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme", balance.Account)
	assert.InDelta(t, 130.5, balance.Total(), 0.001)
}

func TestSendSMSUsesGETForSmallBatches(t *testing.T) {
	var gotMethod, gotTo, gotSendTime string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotTo = r.URL.Query().Get("to")
		gotSendTime = r.URL.Query().Get("sendtime")
		writeEnvelope(w, 0, SendResult{BatchID: "b-1", Accepted: 2})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).SendSMS(context.Background(), SendRequest{
		Numbers:  []string{"+989123456789", "+989123456780"},
		Content:  "hello",
		SendTime: "20250314150926",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "+989123456789,+989123456780", gotTo)
	assert.Equal(t, "20250314150926", gotSendTime)
	assert.Equal(t, "b-1", result.BatchID)
	assert.Equal(t, 2, result.Accepted)
}

func TestSendSMSUsesPOSTForLargeBatches(t *testing.T) {
	var gotMethod, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeEnvelope(w, 0, SendResult{BatchID: "b-2", Accepted: 101})
	}))
	defer server.Close()

	numbers := make([]string, utils.SMSLimitGET+1)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("+98912345%04d", i)
	}

	result, err := newTestClient(server.URL).SendSMS(context.Background(), SendRequest{
		Numbers: numbers,
		Content: "bulk hello",
		Sender:  "5000",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Len(t, gotBody["to"], utils.SMSLimitGET+1)
	assert.Equal(t, "5000", gotBody["from"])
	assert.Equal(t, "b-2", result.BatchID)
}

func TestSendSMSRejectsOversizedBatches(t *testing.T) {
	client := newTestClient("http://unreachable.invalid")

	_, err := client.SendSMS(context.Background(), SendRequest{
		Numbers: make([]string, utils.SMSLimitPOST+1),
		Content: "too many",
	})
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidRecipient, ProviderErrorCode(err))

	_, err = client.SendSMS(context.Background(), SendRequest{Content: "nobody"})
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidRecipient, ProviderErrorCode(err))
}

func TestProviderErrorMapping(t *testing.T) {
	t.Run("envelope error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, utils.CodeInsufficientCredit, nil)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetBalance(context.Background())
		require.Error(t, err)
		assert.Equal(t, utils.CodeInsufficientCredit, ProviderErrorCode(err))
		assert.Contains(t, err.Error(), "insufficient credit")
	})

	t.Run("unexpected HTTP status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetBalance(context.Background())
		require.Error(t, err)
		assert.Equal(t, utils.CodeHTTPError, ProviderErrorCode(err))
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetBalance(context.Background())
		require.Error(t, err)
		assert.Equal(t, utils.CodeInvalidJSON, ProviderErrorCode(err))
	})

	t.Run("connection refused", func(t *testing.T) {
		_, err := newTestClient("http://127.0.0.1:1").GetBalance(context.Background())
		require.Error(t, err)
		assert.Equal(t, utils.CodeConnectionError, ProviderErrorCode(err))
	})
}

func TestCreateTask(t *testing.T) {
	var gotMethod, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/smsjob", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeEnvelope(w, 0, TaskAck{JobID: "job-7"})
	}))
	defer server.Close()

	ack, err := newTestClient(server.URL).CreateTask(context.Background(), TaskRequest{
		JobType:  "daily",
		Numbers:  []string{"+989123456789", "+989123456780"},
		Content:  "daily reminder",
		Sender:   "5000",
		SendTime: "20250314083000",
		EndTime:  "20251231083000",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "daily", gotBody["jobtype"])
	assert.Len(t, gotBody["contacts"], 2)
	assert.Equal(t, "daily reminder", gotBody["content"])
	assert.Equal(t, "5000", gotBody["from"])
	assert.Equal(t, "20250314083000", gotBody["sendtime"])
	assert.Equal(t, "20251231083000", gotBody["endtime"])
	assert.NotContains(t, gotBody, "interval")
	assert.Equal(t, "job-7", ack.JobID)
}

func TestCreateTaskRejectsEmptyRecipientList(t *testing.T) {
	_, err := newTestClient("http://unreachable.invalid").CreateTask(context.Background(), TaskRequest{
		JobType: "immediate",
		Content: "nobody",
	})
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidRecipient, ProviderErrorCode(err))
}

func TestMockCreateTaskTracksJobs(t *testing.T) {
	mock := NewMockTraffilinkClient()

	ack, err := mock.CreateTask(context.Background(), TaskRequest{
		JobType:  "interval",
		Numbers:  []string{"+989123456789"},
		Content:  "ping",
		Interval: 3600,
	})
	require.NoError(t, err)
	require.Len(t, mock.TaskRequests, 1)

	job, err := mock.GetJobStatus(context.Background(), ack.JobID)
	require.NoError(t, err)
	assert.Equal(t, "scheduled", job.State)
	assert.Equal(t, 1, job.Total)
}

func TestGetReportPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getreport", r.URL.Path)
		assert.Equal(t, "batch-9", r.URL.Query().Get("batchid"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		writeEnvelope(w, 0, []ReportEntry{
			{Number: "+989123456789", Status: "delivered"},
		})
	}))
	defer server.Close()

	entries, err := newTestClient(server.URL).GetReport(context.Background(), "batch-9", 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "delivered", entries[0].Status)
}

func TestGetIncomingSMSClampsLimit(t *testing.T) {
	var gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		writeEnvelope(w, 0, []IncomingMessage{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetIncomingSMS(context.Background(), 9999)
	require.NoError(t, err)
	assert.Equal(t, "50", gotLimit)
}

func TestEndpointTrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, strings.Contains(r.URL.Path, "//"))
		writeEnvelope(w, 0, BalanceInfo{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL + "/").GetBalance(context.Background())
	require.NoError(t, err)
}
