package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"medibot/internal/models"

	"github.com/redis/go-redis/v9"
)

// AnswerCache stores resolved answers keyed by question and retrieval
// parameters. A cache entry is only valid while the knowledge base is
// unchanged, so ingestion invalidates the kb's namespace.
type AnswerCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

func NewAnswerCache(rdb *redis.Client, ttlSeconds int) *AnswerCache {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &AnswerCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "medibot:answer:",
	}
}

func (c *AnswerCache) Get(ctx context.Context, kbID, question string, topK int, minSimilarity float64) (models.Answer, bool) {
	if c == nil || c.redis == nil {
		return models.Answer{}, false
	}
	key := c.key(kbID, question, topK, minSimilarity)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return models.Answer{}, false
	}
	var ans models.Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		slog.Warn("failed to unmarshal cached answer", "key", key, "error", err)
		return models.Answer{}, false
	}
	slog.Debug("answer cache hit", "key", key)
	return ans, true
}

func (c *AnswerCache) Set(ctx context.Context, kbID, question string, topK int, minSimilarity float64, ans models.Answer) {
	if c == nil || c.redis == nil {
		return
	}
	// Fallback answers reflect a provider outage, not knowledge base state.
	if ans.Fallback {
		return
	}
	data, err := json.Marshal(ans)
	if err != nil {
		return
	}
	key := c.key(kbID, question, topK, minSimilarity)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("failed to set answer cache", "key", key, "error", err)
	}
}

// InvalidateKB drops every cached answer for one knowledge base. Called after
// ingestion completes so stale answers never outlive new content.
func (c *AnswerCache) InvalidateKB(ctx context.Context, kbID string) {
	if c == nil || c.redis == nil {
		return
	}
	pattern := c.prefix + kbID + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.redis.Del(ctx, keys...)
		slog.Info("answer cache invalidated", "kb_id", kbID, "keys_deleted", len(keys))
	}
}

func (c *AnswerCache) key(kbID, question string, topK int, minSimilarity float64) string {
	raw := fmt.Sprintf("%s|%s|%d|%.4f", kbID, question, topK, minSimilarity)
	hash := sha256.Sum256([]byte(raw))
	return c.prefix + kbID + ":" + fmt.Sprintf("%x", hash[:12])
}
