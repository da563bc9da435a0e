package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/goleador/traffilink-dispatch/app/dto"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	PrepareCampaign(c fiber.Ctx) error
	SendCampaign(c fiber.Ctx) error
	Progress(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
}

// CampaignHandler handles template campaign HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign registers a draft template campaign
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
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

	result, err := h.campaignFlow.CreateCampaign(h.createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		if businessflow.IsNoValidNumbers(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No valid contact numbers", "NO_VALID_NUMBERS", nil)
		}

		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// PrepareCampaign renders the template for every contact and marks the
// campaign ready
func (h *CampaignHandler) PrepareCampaign(c fiber.Ctx) error {
	return h.withCampaign(c, "prepare", h.campaignFlow.PrepareCampaign)
}

// SendCampaign starts the background send worker
func (h *CampaignHandler) SendCampaign(c fiber.Ctx) error {
	uuid := c.Params("id")
	if uuid == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign ID is required", "MISSING_CAMPAIGN_ID", nil)
	}

	result, err := h.campaignFlow.SendCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+uuid+"/send"), uuid)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignStateConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign status does not allow sending", "CAMPAIGN_STATE_CONFLICT", nil)
		}

		log.Println("Campaign send failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign send failed", "CAMPAIGN_SEND_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Campaign send started", result)
}

// Progress reports campaign send progress
func (h *CampaignHandler) Progress(c fiber.Ctx) error {
	uuid := c.Params("id")
	if uuid == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign ID is required", "MISSING_CAMPAIGN_ID", nil)
	}

	result, err := h.campaignFlow.Progress(h.createRequestContext(c, "/api/v1/campaigns/"+uuid+"/progress"), uuid)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}

		log.Println("Campaign progress failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign progress failed", "CAMPAIGN_PROGRESS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign progress retrieved successfully", result)
}

// CancelCampaign cancels a campaign, stopping a running send worker
func (h *CampaignHandler) CancelCampaign(c fiber.Ctx) error {
	return h.withCampaign(c, "cancel", h.campaignFlow.CancelCampaign)
}

// withCampaign runs a single-campaign operation and maps its business errors.
func (h *CampaignHandler) withCampaign(c fiber.Ctx, action string, op func(ctx context.Context, uuid string) (*dto.CampaignResponse, error)) error {
	uuid := c.Params("id")
	if uuid == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign ID is required", "MISSING_CAMPAIGN_ID", nil)
	}

	result, err := op(h.createRequestContext(c, "/api/v1/campaigns/"+uuid), uuid)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignStateConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign status does not allow "+action, "CAMPAIGN_STATE_CONFLICT", nil)
		}
		if businessflow.IsCampaignMissingVars(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Template variables are missing for some contacts", "CAMPAIGN_MISSING_VARIABLES", err.Error())
		}

		log.Println("Campaign", action, "failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign operation failed", "CAMPAIGN_OPERATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign "+action+" succeeded", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *CampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
