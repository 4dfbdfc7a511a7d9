// Package redis provides an optional durable mirror for session turn history
// and a cache for the generated schema description. When redis is disabled
// in config the rest of the system runs entirely in memory.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/session"
	"github.com/retail-insights/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// AppendTurn mirrors a committed turn to the session's archive list.
func (c *Client) AppendTurn(ctx context.Context, sessionID string, turn session.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	err = c.client.RPush(ctx, fmt.Sprintf("session:%s:turns", sessionID), data).Err()
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	logger.Debug("Turn archived", zap.String("session_id", sessionID), zap.String("turn_id", turn.ID))
	return nil
}

// Turns loads the archived history for a session, oldest first.
func (c *Client) Turns(ctx context.Context, sessionID string) ([]session.Turn, error) {
	raw, err := c.client.LRange(ctx, fmt.Sprintf("session:%s:turns", sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load turn archive: %w", err)
	}

	turns := make([]session.Turn, 0, len(raw))
	for _, item := range raw {
		var t session.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear drops the archived history for a session.
func (c *Client) Clear(ctx context.Context, sessionID string) error {
	err := c.client.Del(ctx, fmt.Sprintf("session:%s:turns", sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to clear turn archive: %w", err)
	}

	logger.Debug("Turn archive cleared", zap.String("session_id", sessionID))
	return nil
}

// SetSchema caches the generated schema description text.
func (c *Client) SetSchema(ctx context.Context, schemaHash, text string, ttl time.Duration) error {
	err := c.client.Set(ctx, fmt.Sprintf("schema:%s", schemaHash), text, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set schema cache: %w", err)
	}

	logger.Debug("Schema description cached", zap.String("schema_hash", schemaHash), zap.Duration("ttl", ttl))
	return nil
}

// GetSchema returns the cached schema description, if present.
func (c *Client) GetSchema(ctx context.Context, schemaHash string) (string, bool, error) {
	text, err := c.client.Get(ctx, fmt.Sprintf("schema:%s", schemaHash)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get schema cache: %w", err)
	}

	logger.Debug("Schema cache hit", zap.String("schema_hash", schemaHash))
	return text, true, nil
}
