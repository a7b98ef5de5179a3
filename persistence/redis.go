package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/rpsarena/models"
)

// maxGameRecords bounds the history list kept in redis.
const maxGameRecords = 1000

// Redis 排行榜存储: a sorted set scored by wins plus one hash per player.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to url (redis://host:port/db) and pings it.
func NewRedis(url string, poolSize int, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisWithClient(client, prefix), nil
}

// NewRedisWithClient wraps an existing client (tests use miniredis).
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rps"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) winsKey() string {
	return fmt.Sprintf("%s:leaderboard:wins", r.prefix)
}

func (r *Redis) playerKey(userID string) string {
	return fmt.Sprintf("%s:player:%s", r.prefix, userID)
}

func (r *Redis) recordsKey() string {
	return fmt.Sprintf("%s:game_records", r.prefix)
}

func (r *Redis) RegisterPlayer(ctx context.Context, userID, displayName string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.playerKey(userID), "display_name", displayName)
		pipe.ZAddNX(ctx, r.winsKey(), redis.Z{Score: 0, Member: userID})
		return nil
	})
	return err
}

func (r *Redis) IncrementWins(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, r.playerKey(userID), "wins", 1)
		pipe.ZIncrBy(ctx, r.winsKey(), 1, userID)
		return nil
	})
	return err
}

func (r *Redis) IncrementLosses(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, r.playerKey(userID), "losses", 1)
		pipe.ZAddNX(ctx, r.winsKey(), redis.Z{Score: 0, Member: userID})
		return nil
	})
	return err
}

// ListTopByWins reads the top of the sorted set, widened to every member
// tied with the last one, then applies the losses/user id tie-break.
func (r *Redis) ListTopByWins(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return []models.LeaderboardEntry{}, nil
	}

	edge, err := r.client.ZRevRangeWithScores(ctx, r.winsKey(), int64(limit-1), int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	lowest := "-inf"
	if len(edge) == 1 {
		lowest = strconv.FormatFloat(edge[0].Score, 'f', -1, 64)
	}

	ids, err := r.client.ZRevRangeByScore(ctx, r.winsKey(), &redis.ZRangeBy{Min: lowest, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.playerKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(ids))
	for i, id := range ids {
		entries = append(entries, entryFromHash(id, cmds[i].Val()))
	}
	sort.Slice(entries, func(i, j int) bool { return lessEntry(entries[i], entries[j]) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *Redis) GetPlayer(ctx context.Context, userID string) (models.LeaderboardEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.playerKey(userID)).Result()
	if err != nil {
		return models.LeaderboardEntry{}, err
	}
	if len(fields) == 0 {
		return models.LeaderboardEntry{}, ErrRecordNotFound
	}
	return entryFromHash(userID, fields), nil
}

func entryFromHash(userID string, fields map[string]string) models.LeaderboardEntry {
	e := models.LeaderboardEntry{UserID: userID, DisplayName: fields["display_name"]}
	e.Wins, _ = strconv.ParseInt(fields["wins"], 10, 64)
	e.Losses, _ = strconv.ParseInt(fields["losses"], 10, 64)
	return e
}

// SaveGameRecord pushes the record onto a capped list, newest first.
func (r *Redis) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, r.recordsKey(), data)
	pipe.LTrim(ctx, r.recordsKey(), 0, maxGameRecords-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentGameRecords returns up to n records, newest first.
func (r *Redis) RecentGameRecords(ctx context.Context, n int) ([]models.GameRecord, error) {
	if n <= 0 {
		return []models.GameRecord{}, nil
	}
	raw, err := r.client.LRange(ctx, r.recordsKey(), 0, int64(n-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(raw))
	for _, item := range raw {
		var rec models.GameRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
