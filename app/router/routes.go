// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/handlers"
	"github.com/goleador/traffilink-dispatch/app/middleware"
	"github.com/goleador/traffilink-dispatch/config"
	"github.com/goleador/traffilink-dispatch/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app             *fiber.App
	cfg             *config.ProductionConfig
	smsHandler      handlers.SMSHandlerInterface
	taskHandler     handlers.TaskHandlerInterface
	campaignHandler handlers.CampaignHandlerInterface
	authMiddleware  *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	smsHandler handlers.SMSHandlerInterface,
	taskHandler handlers.TaskHandlerInterface,
	campaignHandler handlers.CampaignHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Traffilink Dispatch API",
		ServerHeader: "Traffilink-Dispatch",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		cfg:             cfg,
		smsHandler:      smsHandler,
		taskHandler:     taskHandler,
		campaignHandler: campaignHandler,
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Prometheus metrics endpoint
	if r.cfg == nil || r.cfg.Metrics.Enabled {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting, no API key)
	api.Get("/health", r.healthCheck)

	// API documentation route (development only)
	if os.Getenv("APP_ENV") == "development" || os.Getenv("APP_ENV") == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		log.Println("API documentation enabled for development")
	}

	// General rate limiting for all API routes
	maxRequests := 2000
	window := 1 * time.Minute
	if r.cfg != nil && r.cfg.Security.GlobalRateLimit > 0 {
		maxRequests = r.cfg.Security.GlobalRateLimit
		if r.cfg.Security.RateLimitWindow > 0 {
			window = r.cfg.Security.RateLimitWindow
		}
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/v1/health"
		},
	}))

	// API key validation for everything below
	api.Use(r.authMiddleware.Authenticate())

	// SMS dispatch endpoints
	sms := api.Group("/sms")
	sms.Post("/send", r.smsHandler.Send)
	sms.Post("/enqueue", r.smsHandler.Enqueue)
	sms.Get("/", r.smsHandler.ListRecords)
	sms.Get("/:id", r.smsHandler.GetRecord)

	// Provider endpoints
	api.Get("/balance", r.smsHandler.GetBalance)
	api.Get("/reports/:batchId", r.smsHandler.GetReports)
	api.Get("/incoming", r.smsHandler.GetIncoming)
	api.Get("/statistics", r.smsHandler.Statistics)

	// Scheduled task endpoints
	tasks := api.Group("/tasks")
	tasks.Post("/", r.taskHandler.CreateTask)
	tasks.Get("/", r.taskHandler.ListTasks)
	tasks.Get("/statistics", r.taskHandler.Statistics)
	tasks.Get("/:id", r.taskHandler.GetTask)
	tasks.Post("/:id/pause", r.taskHandler.PauseTask)
	tasks.Post("/:id/resume", r.taskHandler.ResumeTask)
	tasks.Post("/:id/cancel", r.taskHandler.CancelTask)
	tasks.Delete("/:id", r.taskHandler.DeleteTask)

	// Campaign endpoints
	campaigns := api.Group("/campaigns")
	campaigns.Post("/", r.campaignHandler.CreateCampaign)
	campaigns.Post("/:id/prepare", r.campaignHandler.PrepareCampaign)
	campaigns.Post("/:id/send", r.campaignHandler.SendCampaign)
	campaigns.Get("/:id/progress", r.campaignHandler.Progress)
	campaigns.Post("/:id/cancel", r.campaignHandler.CancelCampaign)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000, // 1 year
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		XDNSPrefetchControl:   "off",
		XDownloadOptions:      "noopen",
		XPermittedCrossDomain: "none",
	}))

	// CORS middleware with production settings
	allowedOrigins := []string{"*"}
	if r.cfg != nil && len(r.cfg.Security.AllowedOrigins) > 0 {
		allowedOrigins = r.cfg.Security.AllowedOrigins
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"X-API-Key",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		MaxAge: utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// HTTP metrics middleware
	r.app.Use(middleware.Metrics())

	// Advanced logging middleware
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "traffilink-dispatch",
		},
	})
}

// API documentation endpoint
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	docs := GetRouteDocumentation()
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Traffilink Dispatch API Documentation",
			"version":     "1.0.0",
			"description": "SMS dispatch, scheduling and campaign API",
			"endpoints":   docs,
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/sms/send",
			"description": "Dispatch a message to a list of recipients immediately",
			"parameters": map[string]any{
				"numbers":   "array (required) - Recipient phone numbers",
				"content":   "string (required) - Message content, fragmented when over 1024 characters",
				"sender":    "string (optional) - Sender line, defaults to the configured sender",
				"send_time": "string (optional) - Scheduled time as YYYYMMDDHHMMSS, empty means now",
				"options":   "object (optional) - Message processing options (variables, prefix, suffix, ...)",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/sms/enqueue",
			"description": "Queue a message for asynchronous rate-limited dispatch",
			"parameters": map[string]any{
				"priority": "string (optional) - urgent|high|normal|low (default: normal)",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/balance",
			"description": "Provider account balance (cached for 60 seconds)",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/reports/:batchId",
			"description": "Fetch and store delivery reports for a batch",
			"parameters":  map[string]any{},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/tasks",
			"description": "Register a one-shot or recurring send task",
			"parameters": map[string]any{
				"type":             "number (required) - 0 immediate, 1 scheduled, 2 interval, 3 daily, 4 weekly, 5 monthly",
				"contacts":         "array (required) - Recipient phone numbers",
				"content":          "string (required) - Message content",
				"send_time":        "string (optional) - Anchor time as YYYYMMDDHHMMSS",
				"interval_seconds": "number (optional) - Interval for type 2 tasks",
				"end_time":         "string (optional) - Cutoff as YYYYMMDDHHMMSS",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/campaigns",
			"description": "Register a template campaign with per-contact variables",
			"parameters": map[string]any{
				"name":     "string (required) - Campaign name",
				"template": "string (required) - Message template with {{variable}} placeholders",
				"contacts": "array (required) - Contacts with number and variables",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/health",
			"description": "Health check endpoint",
			"parameters":  map[string]any{},
		},
	}
}
