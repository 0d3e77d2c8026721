package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"optionflow/internal/change"
	"optionflow/logger"
	"optionflow/models"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis reference store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Redis keeps the reference under one key and swaps it with
// WATCH/MULTI/EXEC, so a concurrent write aborts the transaction.
type Redis struct {
	client *goredis.Client
	key    string
}

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.GetLogger().WithComponent("redis_store").WithFields(logger.Fields{
		"addr": cfg.Addr,
		"key":  cfg.Key,
	}).Info("connected to redis")

	return &Redis{client: client, key: cfg.Key}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) ReadCurrent(ctx context.Context) (*change.Reference, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get reference: %w", err)
	}
	return decodeRecord(data)
}

func (r *Redis) CompareAndSwap(ctx context.Context, expected int64, next *models.FutureQuote) (*change.Reference, error) {
	var result *change.Reference

	txf := func(tx *goredis.Tx) error {
		var actual int64
		data, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return fmt.Errorf("redis get reference: %w", err)
		default:
			cur, err := decodeRecord(data)
			if err != nil {
				return err
			}
			actual = cur.Revision
		}
		if actual != expected {
			return conflict(expected, actual)
		}

		if next == nil {
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Del(ctx, r.key)
				return nil
			})
			return err
		}

		rec := record{Revision: actual + 1, Future: models.NewFutureRow(*next)}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode reference: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, r.key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &change.Reference{Future: *next, Revision: rec.Revision}
		return nil
	}

	err := r.client.Watch(ctx, txf, r.key)
	if errors.Is(err, goredis.TxFailedErr) {
		return nil, fmt.Errorf("%w: key %s modified concurrently", change.ErrReferenceConflict, r.key)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func decodeRecord(data []byte) (*change.Reference, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode reference: %w", err)
	}
	future, err := rec.Future.Quote()
	if err != nil {
		return nil, fmt.Errorf("decode reference: %w", err)
	}
	return &change.Reference{Future: future, Revision: rec.Revision}, nil
}
