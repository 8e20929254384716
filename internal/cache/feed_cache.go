package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"proctorhub/internal/model"
)

// feedMaxLen caps the per-exam recent-violation list in Redis. Older
// entries are still in Mongo; this is only the fast path for the live
// feed.
const feedMaxLen = 200

// FeedCache keeps a capped most-recent-first list of violations per
// exam for the supervisor live feed.
type FeedCache interface {
	Push(ctx context.Context, examID string, violation *model.ViolationLog) error
	Recent(ctx context.Context, examID string, limit int) ([]*model.ViolationLog, error)
}

type feedCache struct {
	client *redis.Client
}

func NewFeedCache(client *redis.Client) FeedCache {
	return &feedCache{client: client}
}

func (c *feedCache) key(examID string) string {
	return fmt.Sprintf("exam:%s:feed", examID)
}

func (c *feedCache) Push(ctx context.Context, examID string, violation *model.ViolationLog) error {
	data, err := json.Marshal(violation)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, c.key(examID), data)
	pipe.LTrim(ctx, c.key(examID), 0, feedMaxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *feedCache) Recent(ctx context.Context, examID string, limit int) ([]*model.ViolationLog, error) {
	if limit <= 0 || limit > feedMaxLen {
		limit = feedMaxLen
	}
	entries, err := c.client.LRange(ctx, c.key(examID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	violations := make([]*model.ViolationLog, 0, len(entries))
	for _, entry := range entries {
		var v model.ViolationLog
		if err := json.Unmarshal([]byte(entry), &v); err != nil {
			continue
		}
		violations = append(violations, &v)
	}
	return violations, nil
}
