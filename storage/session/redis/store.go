// Package redisstore persists browser sessions in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

const keyPrefix = "session:"

type sessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository stores each session for ttl after its last save.
func NewSessionRepository(client *redis.Client, ttl time.Duration) auth.SessionRepository {
	return &sessionRepository{client: client, ttl: ttl}
}

// Open connects to the configured Redis server and pings it.
func Open(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func (repo *sessionRepository) LoadSession(ctx context.Context, key string) (auth.Session, error) {
	val, err := repo.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, errors.Wrap(err, "getting session")
	}

	var sess auth.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return auth.Session{}, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}

func (repo *sessionRepository) SaveSession(ctx context.Context, key string, sess auth.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrap(repo.client.Set(ctx, keyPrefix+key, data, repo.ttl).Err(), "setting session")
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, key string) error {
	return errors.Wrap(repo.client.Del(ctx, keyPrefix+key).Err(), "deleting session")
}
