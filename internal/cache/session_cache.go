package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"proctorhub/internal/model"
)

// SessionCache mirrors candidate sessions per exam in a Redis hash.
// Mongo stays the source of truth; the mirror is refreshed on every
// registry write and serves single-session reads.
type SessionCache interface {
	Set(ctx context.Context, session *model.CandidateSession) error
	Get(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error)
}

type sessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{client: client}
}

func (c *sessionCache) key(examID string) string {
	return fmt.Sprintf("exam:%s:sessions", examID)
}

func (c *sessionCache) Set(ctx context.Context, session *model.CandidateSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.HSet(ctx, c.key(session.ExamID), session.CandidateID, data).Err()
}

func (c *sessionCache) Get(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error) {
	data, err := c.client.HGet(ctx, c.key(examID), candidateID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.CandidateSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}
