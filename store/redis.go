package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-auth-client/session"
)

const defaultRedisKey = "authclient:session"

var _ session.Store = (*Redis)(nil)

// Redis persists the session record under a single fixed key, for clients
// that already run against Redis and want the session shared across hosts.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisOption defines a function type to modify the Redis instance.
type RedisOption func(*Redis)

// WithKey overrides the record key.
func WithKey(key string) RedisOption {
	return func(r *Redis) {
		r.key = key
	}
}

// WithTTL expires the record after d. Zero keeps it until deleted; tie it to
// the refresh token's lifetime so an abandoned session eventually disappears.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = d
	}
}

// NewRedis creates a Redis-backed store on an existing client.
func NewRedis(client *redis.Client, options ...RedisOption) *Redis {
	r := &Redis{client: client, key: defaultRedisKey}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Save implements session.Store.
func (r *Redis) Save(ctx context.Context, sess *session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "[Redis.Save] marshal session")
	}
	if err := r.client.Set(ctx, r.key, payload, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[Redis.Save] set")
	}
	return nil
}

// Load implements session.Store.
func (r *Redis) Load(ctx context.Context) (*session.Session, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.NotFoundErr
		}
		return nil, errors.Wrap(err, "[Redis.Load] get")
	}

	sess := &session.Session{}
	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, errors.Wrap(err, "[Redis.Load] unmarshal session")
	}
	return sess, nil
}

// Delete implements session.Store.
func (r *Redis) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(err, "[Redis.Delete] del")
	}
	return nil
}
