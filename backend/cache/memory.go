package cache

import (
	"time"

	"github.com/gofiber/storage/memory/v2"
)

const memoryGCInterval = 10 * time.Second

// NewMemory returns a process-local store. Expired entries read as missing
// and are swept every memoryGCInterval.
func NewMemory() *memory.Storage {
	return memory.New(memory.Config{GCInterval: memoryGCInterval})
}
