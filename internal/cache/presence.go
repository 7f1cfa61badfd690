package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/penflowhq/penflow/internal/collab"
)

const (
	presenceKeyPrefix  = "penflow:presence:"
	defaultPresenceTTL = 5 * time.Minute
)

// RedisConfig captures the connection parameters for the presence mirror.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisPresence mirrors per-document rosters and cursor positions into Redis
// so dashboards and sibling processes can observe who is editing what. All
// keys carry a TTL: a crashed process leaves no permanent ghosts.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresence connects eagerly so misconfiguration surfaces at startup.
func NewRedisPresence(ctx context.Context, cfg RedisConfig) (*RedisPresence, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("redis: address is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisPresence{client: client, ttl: ttl}, nil
}

// Close releases the underlying connection pool.
func (p *RedisPresence) Close() error {
	return p.client.Close()
}

// Join records a user in the document's roster set and name hash.
func (p *RedisPresence) Join(ctx context.Context, docID string, user collab.UserInfo) error {
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, roomKey(docID), user.UserID)
	pipe.Expire(ctx, roomKey(docID), p.ttl)
	pipe.HSet(ctx, namesKey(docID), user.UserID, user.Username)
	pipe.Expire(ctx, namesKey(docID), p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave removes a user from the roster and drops their cursor.
func (p *RedisPresence) Leave(ctx context.Context, docID, userID string) error {
	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, roomKey(docID), userID)
	pipe.HDel(ctx, namesKey(docID), userID)
	pipe.Del(ctx, cursorKey(docID, userID))
	_, err := pipe.Exec(ctx)
	return err
}

// Cursor records a user's latest cursor position.
func (p *RedisPresence) Cursor(ctx context.Context, docID string, user collab.UserInfo, position int) error {
	return p.client.Set(ctx, cursorKey(docID, user.UserID), strconv.Itoa(position), p.ttl).Err()
}

// Roster returns the mirrored roster for a document.
func (p *RedisPresence) Roster(ctx context.Context, docID string) ([]collab.UserInfo, error) {
	names, err := p.client.HGetAll(ctx, namesKey(docID)).Result()
	if err != nil {
		return nil, err
	}

	users := make([]collab.UserInfo, 0, len(names))
	for userID, username := range names {
		users = append(users, collab.UserInfo{UserID: userID, Username: username})
	}
	return users, nil
}

func roomKey(docID string) string {
	return presenceKeyPrefix + docID + ":members"
}

func namesKey(docID string) string {
	return presenceKeyPrefix + docID + ":names"
}

func cursorKey(docID, userID string) string {
	return presenceKeyPrefix + docID + ":cursor:" + userID
}
