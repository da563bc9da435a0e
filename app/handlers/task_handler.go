package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/goleador/traffilink-dispatch/app/dto"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
)

// TaskHandlerInterface defines the contract for scheduled task handlers
type TaskHandlerInterface interface {
	CreateTask(c fiber.Ctx) error
	ListTasks(c fiber.Ctx) error
	GetTask(c fiber.Ctx) error
	PauseTask(c fiber.Ctx) error
	ResumeTask(c fiber.Ctx) error
	CancelTask(c fiber.Ctx) error
	DeleteTask(c fiber.Ctx) error
	Statistics(c fiber.Ctx) error
}

// TaskHandler handles scheduled task HTTP requests
type TaskHandler struct {
	taskFlow  businessflow.TaskFlow
	validator *validator.Validate
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskFlow businessflow.TaskFlow) *TaskHandler {
	return &TaskHandler{
		taskFlow:  taskFlow,
		validator: validator.New(),
	}
}

func (h *TaskHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TaskHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateTask registers a one-shot or recurring send task
func (h *TaskHandler) CreateTask(c fiber.Ctx) error {
	var req dto.CreateTaskRequest
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

	result, err := h.taskFlow.CreateTask(h.createRequestContext(c, "/api/v1/tasks"), &req, metadata)
	if err != nil {
		if businessflow.IsTaskInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task definition", "TASK_INVALID", err.Error())
		}
		if businessflow.IsNoValidNumbers(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No valid contact numbers", "NO_VALID_NUMBERS", nil)
		}
		if businessflow.IsInvalidSendTime(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid send time, expected YYYYMMDDHHMMSS", "INVALID_SEND_TIME", nil)
		}

		log.Println("Task creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task creation failed", "TASK_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Task created successfully", result)
}

// ListTasks lists scheduled tasks with optional status and type filters
func (h *TaskHandler) ListTasks(c fiber.Ctx) error {
	req := &dto.ListTasksRequest{
		Status: c.Query("status"),
	}
	if typeStr := c.Query("type"); typeStr != "" {
		if t, err := strconv.Atoi(typeStr); err == nil {
			req.Type = &t
		}
	}
	req.Limit, _ = strconv.Atoi(c.Query("limit", "100"))
	req.Offset, _ = strconv.Atoi(c.Query("offset", "0"))

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.taskFlow.ListTasks(h.createRequestContext(c, "/api/v1/tasks"), req)
	if err != nil {
		log.Println("Task list failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task list failed", "TASK_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tasks retrieved successfully", fiber.Map{
		"items": result,
		"count": len(result),
	})
}

// GetTask returns one scheduled task
func (h *TaskHandler) GetTask(c fiber.Ctx) error {
	return h.withTask(c, "get", func(ctx context.Context, uuid string) (*dto.TaskResponse, error) {
		return h.taskFlow.GetTask(ctx, uuid)
	})
}

// PauseTask pauses an active task
func (h *TaskHandler) PauseTask(c fiber.Ctx) error {
	return h.withTask(c, "pause", h.taskFlow.PauseTask)
}

// ResumeTask resumes a paused task
func (h *TaskHandler) ResumeTask(c fiber.Ctx) error {
	return h.withTask(c, "resume", h.taskFlow.ResumeTask)
}

// CancelTask cancels a task
func (h *TaskHandler) CancelTask(c fiber.Ctx) error {
	return h.withTask(c, "cancel", h.taskFlow.CancelTask)
}

// DeleteTask removes a task from scheduling
func (h *TaskHandler) DeleteTask(c fiber.Ctx) error {
	uuid := c.Params("id")
	if uuid == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Task ID is required", "MISSING_TASK_ID", nil)
	}

	err := h.taskFlow.DeleteTask(h.createRequestContext(c, "/api/v1/tasks/"+uuid), uuid)
	if err != nil {
		if businessflow.IsTaskNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Task not found", "TASK_NOT_FOUND", nil)
		}

		log.Println("Task delete failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task delete failed", "TASK_DELETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Task deleted successfully", nil)
}

// Statistics summarizes tasks by status and type
func (h *TaskHandler) Statistics(c fiber.Ctx) error {
	result, err := h.taskFlow.Statistics(h.createRequestContext(c, "/api/v1/tasks/statistics"))
	if err != nil {
		log.Println("Task statistics failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task statistics failed", "TASK_STATISTICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Task statistics retrieved successfully", result)
}

// withTask runs a single-task operation and maps its business errors.
func (h *TaskHandler) withTask(c fiber.Ctx, action string, op func(ctx context.Context, uuid string) (*dto.TaskResponse, error)) error {
	uuid := c.Params("id")
	if uuid == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Task ID is required", "MISSING_TASK_ID", nil)
	}

	result, err := op(h.createRequestContext(c, "/api/v1/tasks/"+uuid), uuid)
	if err != nil {
		if businessflow.IsTaskNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Task not found", "TASK_NOT_FOUND", nil)
		}
		if businessflow.IsTaskTransitionDenied(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Task status does not allow "+action, "TASK_TRANSITION_DENIED", nil)
		}

		log.Println("Task", action, "failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task operation failed", "TASK_OPERATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Task "+action+" succeeded", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *TaskHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
