package zonestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// ErrZoneNotFound is returned by Delete for an unknown zone name.
var ErrZoneNotFound = errors.New("zone not found")

// RedisStore keeps zones in Redis so several services and the zonectl CLI
// share one set. Zones live as JSON in the hash <key>; the sorted set
// <key>:order keeps their insertion order, which decides ties in matching.
type RedisStore struct {
	client        *redis.Client
	key           string
	defaultRadius float64
}

// NewRedisStore returns a store over the given client and hash key.
func NewRedisStore(client *redis.Client, key string, defaultRadius float64) *RedisStore {
	return &RedisStore{client: client, key: key, defaultRadius: defaultRadius}
}

func (s *RedisStore) orderKey() string { return s.key + ":order" }
func (s *RedisStore) seqKey() string   { return s.key + ":seq" }

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Zones returns every stored zone in insertion order. Entries that fail to
// decode are reported as an error rather than silently dropped.
func (s *RedisStore) Zones(ctx context.Context) ([]domain.Zone, error) {
	names, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list zone order: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.key, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("get zones: %w", err)
	}

	zones := make([]domain.Zone, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Ordered but missing from the hash: a concurrent Delete.
			continue
		}
		var r record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("decode zone %q: %w", names[i], err)
		}
		zones = append(zones, r.zone(s.defaultRadius))
	}
	return zones, nil
}

// Put creates or replaces a zone. A replaced zone keeps its position in the
// order.
func (s *RedisStore) Put(ctx context.Context, z domain.Zone) error {
	if err := validateZone(z); err != nil {
		return err
	}
	data, err := json.Marshal(recordFor(z))
	if err != nil {
		return fmt.Errorf("encode zone %q: %w", z.Name, err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("next zone sequence: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, z.Name, data)
		pipe.ZAddNX(ctx, s.orderKey(), redis.Z{Score: float64(seq), Member: z.Name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put zone %q: %w", z.Name, err)
	}
	return nil
}

// Delete removes a zone by name.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.key, name)
		pipe.ZRem(ctx, s.orderKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete zone %q: %w", name, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
