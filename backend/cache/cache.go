// Package cache provides short-lived byte storage shared by the rate limiter
// and the chat response cache. Both backends satisfy fiber.Storage.
package cache

import (
	"strings"

	"memorymaze/backend/config"
	"memorymaze/backend/utils"

	"github.com/gofiber/fiber/v2"
)

// Store is fiber.Storage. Get returns nil, nil for a missing or expired key.
type Store = fiber.Storage

// New picks Redis when REDIS_ADDR is set and falls back to memory when it is
// unset or unreachable.
func New(cfg *config.Config, log *utils.Logger) Store {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("Using in-memory cache")
		return NewMemory()
	}
	r, err := NewRedis(addr, "memory-maze:")
	if err != nil {
		log.Warn("Redis unavailable, using in-memory cache", "addr", addr, "error", err)
		return NewMemory()
	}
	log.Info("Using Redis cache", "addr", addr)
	return r
}
