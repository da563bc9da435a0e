package utils

import (
	"time"
)

// Provider batch limits
const (
	// SMSLimitGET is the maximum number of recipients per GET send request
	SMSLimitGET = 100

	// SMSLimitPOST is the maximum number of recipients per POST send request
	SMSLimitPOST = 10000

	// ReportBatchLimit is the number of delivery report entries per page
	ReportBatchLimit = 200

	// IncomingSMSLimit is the maximum number of incoming messages per fetch
	IncomingSMSLimit = 50

	// MaxMessageLength is the maximum accepted message length in runes
	MaxMessageLength = 1024
)

// Provider HTTP timeouts
const (
	// ProviderGETTimeout applies to small (GET) send requests and lookups
	ProviderGETTimeout = 10 * time.Second

	// ProviderPOSTTimeout applies to bulk (POST) send requests
	ProviderPOSTTimeout = 30 * time.Second
)

// Provider status codes. Zero is success, negative values are failures.
// Codes -1 through -12 come from the provider itself; -97 through -101
// are assigned locally for transport and pipeline failures.
const (
	CodeSuccess            = 0
	CodeInvalidCredentials = -1
	CodeInsufficientCredit = -2
	CodeDailyLimitExceeded = -3
	CodeInvalidJSON        = -4
	CodeInvalidRecipient   = -5
	CodeInvalidSender      = -6
	CodeEmptyMessage       = -7
	CodeMessageTooLong     = -8
	CodeInvalidSendTime    = -9
	CodeBlacklisted        = -10
	CodeAccountSuspended   = -11
	CodeServiceUnavailable = -12
	CodeHTTPError          = -97
	CodeTimeout            = -98
	CodeConnectionError    = -99
	CodeValidationFailed   = -100
	CodeNoBatchSucceeded   = -101
)

// ErrorCodeMessages maps provider and local status codes to descriptions.
var ErrorCodeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeInvalidCredentials: "invalid credentials",
	CodeInsufficientCredit: "insufficient credit",
	CodeDailyLimitExceeded: "daily limit exceeded",
	CodeInvalidJSON:        "invalid JSON response",
	CodeInvalidRecipient:   "invalid recipient number",
	CodeInvalidSender:      "invalid sender number",
	CodeEmptyMessage:       "empty message",
	CodeMessageTooLong:     "message too long",
	CodeInvalidSendTime:    "invalid send time",
	CodeBlacklisted:        "recipient is blacklisted",
	CodeAccountSuspended:   "account suspended",
	CodeServiceUnavailable: "service unavailable",
	CodeHTTPError:          "unexpected HTTP status",
	CodeTimeout:            "request timed out",
	CodeConnectionError:    "connection error",
	CodeValidationFailed:   "validation failed",
	CodeNoBatchSucceeded:   "all batches failed",
}

// ErrorCodeMessage returns the description for a status code.
func ErrorCodeMessage(code int) string {
	if msg, ok := ErrorCodeMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// Queue defaults
const (
	DefaultQueueCapacity    = 10000
	DefaultQueueWorkers     = 1
	DefaultQueueMaxAttempts = 3
	DefaultQueueRate        = 10.0 // sends per second shared across workers
)

// Scheduler defaults
const (
	DefaultSchedulerPollInterval = 60 * time.Second
)

// HTTP defaults
const (
	// CORSMaxAge is how long browsers may cache preflight responses, in seconds
	CORSMaxAge = 300
)

// Cache keys and TTLs
const (
	BalanceCacheKey = "traffilink:balance"
	BalanceCacheTTL = 60 * time.Second

	APIKeyCachePrefix = "traffilink:apikey:"
)
