package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/pkg/logger"
	"github.com/ocr-eval/harness/pkg/textkey"
)

const (
	cleanedPrefix   = "cleaned:"
	judgementPrefix = "judgement:"
)

// Client caches model outputs so that re-running a pipeline over the same
// OCR text does not pay for the same completions twice.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedJudgement struct {
	Raw string `json:"raw"`
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	return NewClientWithAddr(fmt.Sprintf("%s:%d", host, port), password, db, ttl)
}

func NewClientWithAddr(addr, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", ttl))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetCleaned looks up the cleaned text a cleaner produced for ocrText.
func (c *Client) GetCleaned(ctx context.Context, cleaner, ocrText string) (string, bool, error) {
	key := cleanedPrefix + textkey.Key(cleaner, ocrText)
	cleaned, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("cleaned_text").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cleaned text: %w", err)
	}

	metrics.CacheHits.WithLabelValues("cleaned_text").Inc()
	logger.Debug("Cleaned text cache hit", zap.String("cleaner", cleaner), zap.String("key", key))
	return cleaned, true, nil
}

func (c *Client) SetCleaned(ctx context.Context, cleaner, ocrText, cleaned string) error {
	key := cleanedPrefix + textkey.Key(cleaner, ocrText)
	if err := c.client.Set(ctx, key, cleaned, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache cleaned text: %w", err)
	}
	return nil
}

// GetJudgement looks up a judge reply for a cleaned text and ground truth.
func (c *Client) GetJudgement(ctx context.Context, judgeModel, cleaned, groundTruth string) (string, bool, error) {
	key := judgementPrefix + textkey.Key(judgeModel, cleaned, groundTruth)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("judgement").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get judgement: %w", err)
	}

	var j cachedJudgement
	if err := json.Unmarshal(data, &j); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal judgement: %w", err)
	}

	metrics.CacheHits.WithLabelValues("judgement").Inc()
	return j.Raw, true, nil
}

func (c *Client) SetJudgement(ctx context.Context, judgeModel, cleaned, groundTruth, raw string) error {
	data, err := json.Marshal(cachedJudgement{Raw: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal judgement: %w", err)
	}

	key := judgementPrefix + textkey.Key(judgeModel, cleaned, groundTruth)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache judgement: %w", err)
	}
	return nil
}

// Invalidate removes every cached cleaned text and judgement and returns how
// many keys were deleted.
func (c *Client) Invalidate(ctx context.Context) (int, error) {
	deleted := 0
	for _, pattern := range []string{cleanedPrefix + "*", judgementPrefix + "*"} {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
				continue
			}
			deleted++
		}
		if err := iter.Err(); err != nil {
			return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
		}
	}

	logger.Info("Model output cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}
