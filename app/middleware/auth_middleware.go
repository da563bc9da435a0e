// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/config"
	"github.com/goleador/traffilink-dispatch/utils"
)

// AuthMiddleware validates API keys for protected endpoints. Keys are
// looked up in Redis first (when available) and fall back to the
// statically configured list.
type AuthMiddleware struct {
	security config.SecurityConfig
	cache    *redis.Client
}

// NewAuthMiddleware creates a new API key middleware. The cache client
// may be nil; lookups then use only the configured keys.
func NewAuthMiddleware(security config.SecurityConfig, cache *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		security: security,
		cache:    cache,
	}
}

// Authenticate is the middleware function that validates API keys
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !m.security.RequireAPIKey {
			return c.Next()
		}

		header := m.security.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		key := c.Get(header)
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		if !m.isValidKey(key) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid API key",
				Error: dto.ErrorDetail{
					Code: "INVALID_API_KEY",
				},
			})
		}

		// Store RequestID for audit logging
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// isValidKey checks the cache first, then the static allow list. A
// static hit is written back to the cache for the next request.
func (m *AuthMiddleware) isValidKey(key string) bool {
	if m.cache != nil {
		lookupCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		val, err := m.cache.Get(lookupCtx, utils.APIKeyCachePrefix+key).Result()
		if err == nil && val == "1" {
			return true
		}
	}

	for _, allowed := range m.security.AllowedAPIKeys {
		if allowed == key {
			if m.cache != nil {
				cacheCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				_ = m.cache.Set(cacheCtx, utils.APIKeyCachePrefix+key, "1", time.Hour).Err()
				cancel()
			}
			return true
		}
	}
	return false
}
