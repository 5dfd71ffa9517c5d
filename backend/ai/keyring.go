package ai

import (
	"fmt"
	"sync"
	"time"

	"memorymaze/backend/utils"

	"github.com/robfig/cron/v3"
)

// errorCooldown is how long a key that failed is passed over.
const errorCooldown = 5 * time.Minute

type keyState struct {
	key       string
	requests  int
	errors    int
	lastUsed  *time.Time
	lastError *time.Time
}

// KeyRing spreads requests across several provider keys, preferring the least
// used key that has not failed recently.
type KeyRing struct {
	mu   sync.Mutex
	keys []*keyState
	now  func() time.Time
}

func NewKeyRing(keys []string) *KeyRing {
	r := &KeyRing{now: time.Now}
	for _, k := range keys {
		r.keys = append(r.keys, &keyState{key: k})
	}
	return r
}

func (r *KeyRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Next picks a key and counts a request against it. ok is false when the
// ring is empty.
func (r *KeyRing) Next() (key string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return "", false
	}
	now := r.now()

	var pick *keyState
	for _, k := range r.keys {
		if k.lastError != nil && now.Sub(*k.lastError) < errorCooldown {
			continue
		}
		if pick == nil || k.requests < pick.requests {
			pick = k
		}
	}
	if pick == nil {
		// every key failed recently: take the one whose error is oldest
		for _, k := range r.keys {
			if pick == nil || k.lastError.Before(*pick.lastError) {
				pick = k
			}
		}
	}

	pick.requests++
	pick.lastUsed = &now
	return pick.key, true
}

func (r *KeyRing) MarkError(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, k := range r.keys {
		if k.key == key {
			k.errors++
			k.lastError = &now
			return
		}
	}
}

// ResetStats zeroes the request and error counters. Error timestamps are
// kept so the cooldown still applies.
func (r *KeyRing) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		k.requests = 0
		k.errors = 0
	}
}

// KeyStats describes one key without revealing it.
type KeyStats struct {
	Key       string     `json:"key"`
	Requests  int        `json:"requests"`
	Errors    int        `json:"errors"`
	LastUsed  *time.Time `json:"lastUsed"`
	LastError *time.Time `json:"lastError"`
}

type RingStats struct {
	TotalKeys     int                 `json:"totalKeys"`
	TotalRequests int                 `json:"totalRequests"`
	TotalErrors   int                 `json:"totalErrors"`
	SuccessRate   string              `json:"successRate"`
	Keys          map[string]KeyStats `json:"keys"`
}

func (r *KeyRing) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := RingStats{TotalKeys: len(r.keys), Keys: make(map[string]KeyStats, len(r.keys))}
	for i, k := range r.keys {
		out.Keys[fmt.Sprintf("key_%d", i+1)] = KeyStats{
			Key:       maskKey(k.key),
			Requests:  k.requests,
			Errors:    k.errors,
			LastUsed:  k.lastUsed,
			LastError: k.lastError,
		}
		out.TotalRequests += k.requests
		out.TotalErrors += k.errors
	}
	out.SuccessRate = "N/A"
	if out.TotalRequests > 0 {
		rate := float64(out.TotalRequests-out.TotalErrors) / float64(out.TotalRequests) * 100
		out.SuccessRate = fmt.Sprintf("%.2f%%", rate)
	}
	return out
}

// ScheduleDailyReset resets the counters every day at midnight UTC. The
// caller stops the returned scheduler on shutdown.
func (r *KeyRing) ScheduleDailyReset(log *utils.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc("@midnight", func() {
		r.ResetStats()
		log.Info("API key stats reset")
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func maskKey(key string) string {
	if len(key) <= 11 {
		return "****"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
