// Package services contains external service integrations and clients
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goleador/traffilink-dispatch/config"
	"github.com/goleador/traffilink-dispatch/utils"
)

// ProviderError carries a Traffilink status code and its description.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("traffilink error %d: %s", e.Code, e.Message)
}

// NewProviderError builds a ProviderError from a status code.
func NewProviderError(code int) *ProviderError {
	return &ProviderError{Code: code, Message: utils.ErrorCodeMessage(code)}
}

// ProviderErrorCode extracts the status code from an error chain. Errors
// that are not provider errors map to the connection error code.
func ProviderErrorCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return utils.CodeConnectionError
}

// BalanceInfo is the account balance returned by /getbalance.
type BalanceInfo struct {
	Account     string  `json:"account"`
	Balance     float64 `json:"balance"`
	GiftBalance float64 `json:"gift_balance"`
}

// Total returns the spendable balance including gift credit.
func (b BalanceInfo) Total() float64 {
	return b.Balance + b.GiftBalance
}

// SendRequest is one batch submission to /sendsms.
type SendRequest struct {
	Numbers  []string
	Content  string
	Sender   string
	SendTime string
}

// SendResult is the provider acknowledgement of a batch.
type SendResult struct {
	BatchID  string  `json:"batch_id"`
	Accepted int     `json:"accepted"`
	Cost     float64 `json:"cost"`
}

// ReportEntry is one per-recipient delivery status from /getreport.
type ReportEntry struct {
	Number       string `json:"number"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	SentAt       string `json:"sent_at,omitempty"`
	DeliveredAt  string `json:"delivered_at,omitempty"`
}

// IncomingMessage is one received SMS from /getsms.
type IncomingMessage struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Content    string `json:"content"`
	ReceivedAt string `json:"received_at"`
}

// TaskRequest is a provider-side scheduled job submission to /smsjob.
// The provider runs the schedule on its end; GetJobStatus tracks it.
type TaskRequest struct {
	JobType  string
	Numbers  []string
	Content  string
	Sender   string
	SendTime string
	Interval int
	EndTime  string
}

// TaskAck acknowledges a created provider job.
type TaskAck struct {
	JobID string `json:"job_id"`
}

// JobStatus is the state of a bulk send job from /smsjob.
type JobStatus struct {
	JobID     string `json:"job_id"`
	State     string `json:"state"`
	Total     int    `json:"total"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Remaining int    `json:"remaining"`
}

// TraffilinkClient is the interface to the Traffilink bulk SMS provider.
type TraffilinkClient interface {
	GetBalance(ctx context.Context) (*BalanceInfo, error)
	SendSMS(ctx context.Context, req SendRequest) (*SendResult, error)
	GetReport(ctx context.Context, batchID string, page int) ([]ReportEntry, error)
	GetIncomingSMS(ctx context.Context, limit int) ([]IncomingMessage, error)
	CreateTask(ctx context.Context, req TaskRequest) (*TaskAck, error)
	GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

type httpTraffilinkClient struct {
	cfg        config.TraffilinkConfig
	getClient  *http.Client
	postClient *http.Client
}

// NewHTTPTraffilinkClient creates a client against a live Traffilink endpoint.
func NewHTTPTraffilinkClient(cfg config.TraffilinkConfig) TraffilinkClient {
	getTimeout := cfg.GETTimeout
	if getTimeout <= 0 {
		getTimeout = utils.ProviderGETTimeout
	}
	postTimeout := cfg.POSTTimeout
	if postTimeout <= 0 {
		postTimeout = utils.ProviderPOSTTimeout
	}
	return &httpTraffilinkClient{
		cfg:        cfg,
		getClient:  &http.Client{Timeout: getTimeout},
		postClient: &http.Client{Timeout: postTimeout},
	}
}

// apiEnvelope is the common wire shape of Traffilink responses. Status
// zero is success; negative values select the provider error table.
type apiEnvelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *httpTraffilinkClient) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func classifyTransportError(err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(utils.CodeTimeout)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return NewProviderError(utils.CodeTimeout)
	}
	return NewProviderError(utils.CodeConnectionError)
}

func (c *httpTraffilinkClient) do(req *http.Request, client *http.Client, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Code: utils.CodeHTTPError, Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}
	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return NewProviderError(utils.CodeInvalidJSON)
	}
	if envelope.Status != utils.CodeSuccess {
		msg := envelope.Message
		if msg == "" {
			msg = utils.ErrorCodeMessage(envelope.Status)
		}
		return &ProviderError{Code: envelope.Status, Message: msg}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return NewProviderError(utils.CodeInvalidJSON)
		}
	}
	return nil
}

func (c *httpTraffilinkClient) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("apikey", c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path)+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, c.getClient, out)
}

func (c *httpTraffilinkClient) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return c.do(req, c.postClient, out)
}

func (c *httpTraffilinkClient) GetBalance(ctx context.Context) (*BalanceInfo, error) {
	var out BalanceInfo
	if err := c.get(ctx, "/getbalance", url.Values{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendSMS submits one batch. Small batches go over GET with query
// parameters, larger ones over POST with a JSON body. The batch size
// must not exceed the POST limit.
func (c *httpTraffilinkClient) SendSMS(ctx context.Context, req SendRequest) (*SendResult, error) {
	if len(req.Numbers) == 0 {
		return nil, NewProviderError(utils.CodeInvalidRecipient)
	}
	if len(req.Numbers) > utils.SMSLimitPOST {
		return nil, NewProviderError(utils.CodeInvalidRecipient)
	}

	var out SendResult
	if len(req.Numbers) <= utils.SMSLimitGET {
		params := url.Values{}
		params.Set("to", strings.Join(req.Numbers, ","))
		params.Set("content", req.Content)
		if req.Sender != "" {
			params.Set("from", req.Sender)
		}
		if req.SendTime != "" {
			params.Set("sendtime", req.SendTime)
		}
		if err := c.get(ctx, "/sendsms", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	payload := map[string]any{
		"to":      req.Numbers,
		"content": req.Content,
	}
	if req.Sender != "" {
		payload["from"] = req.Sender
	}
	if req.SendTime != "" {
		payload["sendtime"] = req.SendTime
	}
	if err := c.post(ctx, "/sendsms", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpTraffilinkClient) GetReport(ctx context.Context, batchID string, page int) ([]ReportEntry, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("batchid", batchID)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(utils.ReportBatchLimit))
	var out []ReportEntry
	if err := c.get(ctx, "/getreport", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpTraffilinkClient) GetIncomingSMS(ctx context.Context, limit int) ([]IncomingMessage, error) {
	if limit <= 0 || limit > utils.IncomingSMSLimit {
		limit = utils.IncomingSMSLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	var out []IncomingMessage
	if err := c.get(ctx, "/getsms", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpTraffilinkClient) CreateTask(ctx context.Context, req TaskRequest) (*TaskAck, error) {
	if len(req.Numbers) == 0 || len(req.Numbers) > utils.SMSLimitPOST {
		return nil, NewProviderError(utils.CodeInvalidRecipient)
	}
	payload := map[string]any{
		"jobtype":  req.JobType,
		"contacts": req.Numbers,
		"content":  req.Content,
	}
	if req.Sender != "" {
		payload["from"] = req.Sender
	}
	if req.SendTime != "" {
		payload["sendtime"] = req.SendTime
	}
	if req.Interval > 0 {
		payload["interval"] = req.Interval
	}
	if req.EndTime != "" {
		payload["endtime"] = req.EndTime
	}
	var out TaskAck
	if err := c.post(ctx, "/smsjob", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpTraffilinkClient) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	params := url.Values{}
	params.Set("jobid", jobID)
	var out JobStatus
	if err := c.get(ctx, "/smsjob", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
