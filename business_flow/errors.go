// Package businessflow contains the core business logic and use cases for SMS dispatch workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Dispatch errors
	ErrNoValidNumbers      = errors.New("no valid recipient numbers")
	ErrEmptyContent        = errors.New("message content is empty")
	ErrContentTooLong      = errors.New("message content is too long")
	ErrSensitiveContent    = errors.New("message content contains control characters")
	ErrInvalidSendTime     = errors.New("invalid send time")
	ErrAllBatchesFailed    = errors.New("all batches failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrSMSNotFound         = errors.New("SMS record not found")

	// Task errors
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskInvalid          = errors.New("task is invalid")
	ErrTaskNotActive        = errors.New("task is not active")
	ErrTaskNotPaused        = errors.New("task is not paused")
	ErrTaskTerminal         = errors.New("task is in a terminal state")
	ErrTaskTransitionDenied = errors.New("task status transition not allowed")

	// Campaign errors
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignNotDraft       = errors.New("campaign is not in draft state")
	ErrCampaignNotReady       = errors.New("campaign is not ready to send")
	ErrCampaignNotSending     = errors.New("campaign is not sending")
	ErrCampaignMissingVars    = errors.New("campaign contacts are missing template variables")
	ErrCampaignAlreadyRunning = errors.New("campaign send already running")

	// Queue errors
	ErrQueueFull    = errors.New("queue is full")
	ErrQueueStopped = errors.New("queue is stopped")

	ErrCacheNotAvailable = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsNoValidNumbers(err error) bool {
	return errors.Is(err, ErrNoValidNumbers)
}

func IsEmptyContent(err error) bool {
	return errors.Is(err, ErrEmptyContent)
}

func IsContentTooLong(err error) bool {
	return errors.Is(err, ErrContentTooLong)
}

func IsSensitiveContent(err error) bool {
	return errors.Is(err, ErrSensitiveContent)
}

func IsInvalidSendTime(err error) bool {
	return errors.Is(err, ErrInvalidSendTime)
}

func IsAllBatchesFailed(err error) bool {
	return errors.Is(err, ErrAllBatchesFailed)
}

func IsSMSNotFound(err error) bool {
	return errors.Is(err, ErrSMSNotFound)
}

func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

func IsTaskInvalid(err error) bool {
	return errors.Is(err, ErrTaskInvalid)
}

func IsTaskTransitionDenied(err error) bool {
	return errors.Is(err, ErrTaskTransitionDenied) ||
		errors.Is(err, ErrTaskNotActive) ||
		errors.Is(err, ErrTaskNotPaused) ||
		errors.Is(err, ErrTaskTerminal)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignStateConflict(err error) bool {
	return errors.Is(err, ErrCampaignNotDraft) ||
		errors.Is(err, ErrCampaignNotReady) ||
		errors.Is(err, ErrCampaignNotSending) ||
		errors.Is(err, ErrCampaignAlreadyRunning)
}

func IsCampaignMissingVars(err error) bool {
	return errors.Is(err, ErrCampaignMissingVars)
}

func IsQueueFull(err error) bool {
	return errors.Is(err, ErrQueueFull)
}

func IsQueueStopped(err error) bool {
	return errors.Is(err, ErrQueueStopped)
}
