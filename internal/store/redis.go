package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

const DefaultRedisPrefix = "teamsync:transcript:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each transcript as a JSON string at <prefix><id> and
// indexes IDs in the sorted set <prefix>index scored by upload time.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
}

func NewRedisStore(opts RedisOptions, log *logger.Logger) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultRedisPrefix
	}
	if log == nil {
		log = logger.Nop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		rdb:    rdb,
		prefix: opts.Prefix,
		log:    log.With("component", "redis_store"),
	}, nil
}

func (rs *RedisStore) key(id string) string { return rs.prefix + id }
func (rs *RedisStore) indexKey() string     { return rs.prefix + "index" }

func (rs *RedisStore) Save(ctx context.Context, t *analysis.Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: nil transcript", analysis.ErrInvalidFormat)
	}
	if err := validateID(t.ID); err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transcript %s: %w", t.ID, err)
	}

	_, err = rs.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, rs.key(t.ID), raw, 0)
		pipe.ZAdd(ctx, rs.indexKey(), goredis.Z{Score: score(t), Member: t.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", t.ID, err)
	}
	return nil
}

func score(t *analysis.Transcript) float64 {
	if t.UploadTime.IsZero() {
		return 0
	}
	return float64(t.UploadTime.UnixMilli())
}

func (rs *RedisStore) Get(ctx context.Context, id string) (*analysis.Transcript, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	raw, err := rs.rdb.Get(ctx, rs.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", rs.key(id), err)
	}
	return analysis.DecodeTranscript(bytes.NewReader(raw))
}

func (rs *RedisStore) List(ctx context.Context) ([]*analysis.Transcript, error) {
	ids, err := rs.rdb.ZRange(ctx, rs.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZRANGE %s: %w", rs.indexKey(), err)
	}
	if len(ids) == 0 {
		return []*analysis.Transcript{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = rs.key(id)
	}
	values, err := rs.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis MGET: %w", err)
	}

	transcripts := make([]*analysis.Transcript, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry without a document; drop it so it does not linger.
			rs.rdb.ZRem(ctx, rs.indexKey(), ids[i])
			continue
		}
		t, err := analysis.DecodeTranscript(bytes.NewReader([]byte(s)))
		if err != nil {
			rs.log.Warn("skipping unreadable transcript", "id", ids[i], "error", err)
			continue
		}
		transcripts = append(transcripts, t)
	}
	sortByUpload(transcripts)
	return transcripts, nil
}

func (rs *RedisStore) Rename(ctx context.Context, id, displayName string) (*analysis.Transcript, error) {
	var renamed *analysis.Transcript
	key := rs.key(id)
	if err := validateID(id); err != nil {
		return nil, err
	}

	// Optimistic lock so a concurrent Save is not overwritten.
	err := rs.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		t, err := analysis.DecodeTranscript(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		t.DisplayName = displayName
		out, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		renamed = t
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	var del *goredis.IntCmd
	_, err := rs.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, rs.key(id))
		pipe.ZRem(ctx, rs.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.rdb.Close()
}
