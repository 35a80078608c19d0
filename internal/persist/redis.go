package persist

import (
	"context"
	"sort"

	"facecapture/internal/capture"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each buffer store document under <prefix>:store:<name>
// and tracks names in the set <prefix>:stores.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a RedisStore using client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "facecapture"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis parses url, connects and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Load implements Store.Load.
func (s *RedisStore) Load(ctx context.Context, name string) (*capture.BufferStore, error) {
	data, err := s.client.Get(ctx, s.docKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStoreNotFound
		}
		return nil, errors.Wrapf(err, "load store %q", name)
	}
	return decodeAs(name, data)
}

// Save implements Store.Save.
func (s *RedisStore) Save(ctx context.Context, store *capture.BufferStore) error {
	data, err := Encode(store)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(store.Name()), data, 0)
		pipe.SAdd(ctx, s.namesKey(), store.Name())
		return nil
	})
	return errors.Wrapf(err, "save store %q", store.Name())
}

// List implements Store.List. Names are sorted.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list stores")
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) docKey(name string) string { return s.prefix + ":store:" + name }
func (s *RedisStore) namesKey() string          { return s.prefix + ":stores" }
