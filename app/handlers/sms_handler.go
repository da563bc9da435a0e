package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/queue"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
)

// SMSHandlerInterface defines the contract for SMS dispatch handlers
type SMSHandlerInterface interface {
	Send(c fiber.Ctx) error
	Enqueue(c fiber.Ctx) error
	GetRecord(c fiber.Ctx) error
	ListRecords(c fiber.Ctx) error
	GetBalance(c fiber.Ctx) error
	GetReports(c fiber.Ctx) error
	GetIncoming(c fiber.Ctx) error
	Statistics(c fiber.Ctx) error
}

// SMSHandler handles SMS dispatch, queueing and reporting HTTP requests
type SMSHandler struct {
	dispatchFlow businessflow.DispatchFlow
	reportFlow   businessflow.ReportFlow
	taskFlow     businessflow.TaskFlow
	sendQueue    *queue.SendQueue
	validator    *validator.Validate
}

// NewSMSHandler creates a new SMS handler
func NewSMSHandler(
	dispatchFlow businessflow.DispatchFlow,
	reportFlow businessflow.ReportFlow,
	taskFlow businessflow.TaskFlow,
	sendQueue *queue.SendQueue,
) *SMSHandler {
	return &SMSHandler{
		dispatchFlow: dispatchFlow,
		reportFlow:   reportFlow,
		taskFlow:     taskFlow,
		sendQueue:    sendQueue,
		validator:    validator.New(),
	}
}

func (h *SMSHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SMSHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Send dispatches a message to a list of recipients immediately
func (h *SMSHandler) Send(c fiber.Ctx) error {
	var req dto.SendSMSRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.Send(h.createRequestContext(c, "/api/v1/sms/send"), &req, metadata)
	if err != nil {
		if businessflow.IsNoValidNumbers(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No valid recipient numbers", "NO_VALID_NUMBERS", nil)
		}
		if businessflow.IsEmptyContent(err) || businessflow.IsContentTooLong(err) || businessflow.IsSensitiveContent(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid message content", "INVALID_CONTENT", nil)
		}
		if businessflow.IsInvalidSendTime(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid send time, expected YYYYMMDDHHMMSS", "INVALID_SEND_TIME", nil)
		}
		if businessflow.IsAllBatchesFailed(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "All batches were rejected by the provider", "ALL_BATCHES_FAILED", nil)
		}

		log.Println("SMS send failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "SMS send failed", "SMS_SEND_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "SMS dispatched successfully", result)
}

// Enqueue queues a message for asynchronous dispatch
func (h *SMSHandler) Enqueue(c fiber.Ctx) error {
	var req dto.EnqueueSMSRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	priority := queue.ParsePriority(req.Priority)
	item, err := h.sendQueue.Enqueue(&req.SendSMSRequest, priority)
	if err != nil {
		if businessflow.IsQueueFull(err) {
			return h.ErrorResponse(c, fiber.StatusTooManyRequests, "Send queue is full", "QUEUE_FULL", nil)
		}
		if businessflow.IsQueueStopped(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Send queue is not accepting items", "QUEUE_STOPPED", nil)
		}

		log.Println("SMS enqueue failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "SMS enqueue failed", "SMS_ENQUEUE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "SMS queued successfully", dto.EnqueueSMSResponse{
		ItemID:   item.ID,
		Priority: priority.String(),
		Depth:    h.sendQueue.Stats().Depth,
	})
}

// GetRecord returns one stored SMS record with its delivery reports
func (h *SMSHandler) GetRecord(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "SMS ID is required", "MISSING_SMS_ID", nil)
	}

	result, err := h.reportFlow.GetRecord(h.createRequestContext(c, "/api/v1/sms/"+id), id)
	if err != nil {
		if businessflow.IsSMSNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "SMS record not found", "SMS_NOT_FOUND", nil)
		}

		log.Println("SMS lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "SMS lookup failed", "SMS_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "SMS record retrieved successfully", result)
}

// ListRecords lists stored SMS records, newest first
func (h *SMSHandler) ListRecords(c fiber.Ctx) error {
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	result, err := h.reportFlow.ListRecords(h.createRequestContext(c, "/api/v1/sms"), status, limit, offset)
	if err != nil {
		log.Println("SMS list failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "SMS list failed", "SMS_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "SMS records retrieved successfully", fiber.Map{
		"items": result,
		"count": len(result),
	})
}

// GetBalance returns the provider account balance
func (h *SMSHandler) GetBalance(c fiber.Ctx) error {
	result, err := h.dispatchFlow.GetBalance(h.createRequestContext(c, "/api/v1/balance"))
	if err != nil {
		log.Println("Balance fetch failed", err)
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to fetch balance", "BALANCE_FETCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Balance retrieved successfully", result)
}

// GetReports fetches and stores delivery reports for a batch
func (h *SMSHandler) GetReports(c fiber.Ctx) error {
	batchID := c.Params("batchId")
	if batchID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Batch ID is required", "MISSING_BATCH_ID", nil)
	}

	result, err := h.reportFlow.FetchReports(h.createRequestContext(c, "/api/v1/reports/"+batchID), batchID)
	if err != nil {
		log.Println("Report fetch failed", err)
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to fetch delivery reports", "REPORT_FETCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery reports retrieved successfully", fiber.Map{
		"batch_id": batchID,
		"reports":  result,
		"count":    len(result),
	})
}

// GetIncoming fetches and stores new incoming messages
func (h *SMSHandler) GetIncoming(c fiber.Ctx) error {
	result, err := h.reportFlow.FetchIncoming(h.createRequestContext(c, "/api/v1/incoming"))
	if err != nil {
		log.Println("Incoming fetch failed", err)
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to fetch incoming SMS", "INCOMING_FETCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Incoming SMS retrieved successfully", fiber.Map{
		"items": result,
		"count": len(result),
	})
}

// Statistics aggregates dispatch, queue, task and storage counters
func (h *SMSHandler) Statistics(c fiber.Ctx) error {
	ctx := h.createRequestContext(c, "/api/v1/statistics")

	response := dto.StatisticsResponse{
		Dispatch: h.dispatchFlow.Statistics(),
		Queue:    h.sendQueue.Stats(),
	}

	if tasks, err := h.taskFlow.Statistics(ctx); err == nil {
		response.Tasks = tasks
	}

	total, sent, failed, transactions, err := h.reportFlow.StorageStatistics(ctx)
	if err != nil {
		log.Println("Storage statistics failed", err)
	} else {
		response.TotalSMS = total
		response.SentSMS = sent
		response.FailedSMS = failed
		response.Transactions = transactions
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", response)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *SMSHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 60*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}
