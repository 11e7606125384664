// Package analytics records search and chat activity into Redis as a
// capped, expiring list. Recording is strictly best-effort: failures are
// logged and never surface to the caller.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"policychat/internal/pkg/logger"
)

type Event struct {
	Kind         string    `json:"kind"` // "search" | "chat"
	TenantID     string    `json:"tenant_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Query        string    `json:"query"`
	ResultsCount int       `json:"results_count"`
	At           time.Time `json:"at"`
}

type Sink struct {
	client     *redisv9.Client
	ttl        time.Duration
	maxRecords int64
}

func NewSink(client *redisv9.Client, ttl time.Duration, maxRecords int64) *Sink {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	return &Sink{client: client, ttl: ttl, maxRecords: maxRecords}
}

// Record pushes the event onto the tenant's activity list, trims the list
// to its cap, and refreshes the key's TTL. A nil sink or nil client makes
// this a no-op, so callers never need to guard.
func (s *Sink) Record(ctx context.Context, ev Event) {
	if s == nil || s.client == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.For("analytics").Warnf("marshal analytics event failed: %v", err)
		return
	}

	key := s.key(ev.TenantID)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, s.maxRecords-1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.For("analytics").Warnf("record analytics event failed: %v", err)
	}
}

func (s *Sink) key(tenantID string) string {
	return fmt.Sprintf("analytics:activity:%s", tenantID)
}
