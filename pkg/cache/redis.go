package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"knowledgecheckr/internal/models"
)

const checkTTL = 24 * time.Hour

// RedisCache caches knowledge checks by share key so the attempt entry page
// does not hit the database on every visit.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func checkKey(shareKey string) string {
	return "check:" + shareKey
}

func (c *RedisCache) SetCheck(check *models.KnowledgeCheck) error {
	data, err := json.Marshal(check)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, checkKey(check.ShareKey), data, checkTTL).Err()
}

func (c *RedisCache) GetCheck(shareKey string) (*models.KnowledgeCheck, error) {
	data, err := c.client.Get(c.ctx, checkKey(shareKey)).Bytes()
	if err != nil {
		return nil, err
	}

	var check models.KnowledgeCheck
	err = json.Unmarshal(data, &check)
	return &check, err
}

// InvalidateCheck drops the cached copy after an edit or delete.
func (c *RedisCache) InvalidateCheck(shareKey string) error {
	return c.client.Del(c.ctx, checkKey(shareKey)).Err()
}
