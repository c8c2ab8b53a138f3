package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisAdminIndex keeps the admin -> escrow projection in a hash per admin,
// field = escrow id, value = creation time in unix seconds.
type RedisAdminIndex struct {
	client *redis.Client
}

func NewRedisAdminIndex(client *redis.Client) *RedisAdminIndex {
	return &RedisAdminIndex{client: client}
}

func (s *RedisAdminIndex) Put(ctx context.Context, entry domain.AdminIndexEntry) error {
	return s.client.HSet(ctx, indexKey(entry.AdminID), entry.EscrowID, entry.CreatedAt.Unix()).Err()
}

func (s *RedisAdminIndex) Remove(ctx context.Context, adminID, escrowID string) error {
	return s.client.HDel(ctx, indexKey(adminID), escrowID).Err()
}

func (s *RedisAdminIndex) ListEscrowIDs(ctx context.Context, adminID string) ([]string, error) {
	data, err := s.client.HGetAll(ctx, indexKey(adminID)).Result()
	if err != nil {
		return nil, err
	}
	type row struct {
		escrowID string
		at       int64
	}
	rows := make([]row, 0, len(data))
	for escrowID, raw := range data {
		at, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			at = 0
		}
		rows = append(rows, row{escrowID: escrowID, at: at})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].at != rows[j].at {
			return rows[i].at < rows[j].at
		}
		return rows[i].escrowID < rows[j].escrowID
	})
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.escrowID)
	}
	return out, nil
}

func indexKey(adminID string) string {
	return "settlement:admin_index:" + adminID
}
