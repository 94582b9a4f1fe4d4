package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/rentalwatch/config"
	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/session"
	"github.com/redis/go-redis/v9"
)

// RedisCache persists the auth session across restarts and caches the
// public car listing.
type RedisCache struct {
	client     redis.Cmdable
	sessionKey string
	sessionTTL time.Duration
	carsTTL    time.Duration
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return newRedisCache(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), cfg)
}

func newRedisCache(client redis.Cmdable, cfg config.RedisConfig) *RedisCache {
	key := cfg.SessionKey
	if key == "" {
		key = "rentalwatch:auth-storage"
	}
	return &RedisCache{
		client:     client,
		sessionKey: key,
		sessionTTL: time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		carsTTL:    time.Duration(cfg.CarsCacheTTLSecs) * time.Second,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

type sessionRecord struct {
	Token string      `json:"token"`
	User  *userRecord `json:"user,omitempty"`
}

type userRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func encodeSession(s session.Session) ([]byte, error) {
	rec := sessionRecord{Token: s.Token}
	if s.Identity != nil {
		rec.User = &userRecord{
			ID:        s.Identity.ID,
			Username:  s.Identity.Username,
			IsAdmin:   s.Identity.IsAdmin,
			CreatedAt: s.Identity.CreatedAt,
		}
	}
	return json.Marshal(rec)
}

func decodeSession(data []byte) (*session.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	s := &session.Session{Token: rec.Token}
	if rec.User != nil {
		s.Identity = &domain.User{
			ID:        rec.User.ID,
			Username:  rec.User.Username,
			IsAdmin:   rec.User.IsAdmin,
			CreatedAt: rec.User.CreatedAt,
		}
	}
	return s, nil
}

func (c *RedisCache) SaveSession(ctx context.Context, s session.Session) error {
	payload, err := encodeSession(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.sessionKey, payload, c.sessionTTL).Err()
}

// LoadSession returns nil, nil when nothing is stored.
func (c *RedisCache) LoadSession(ctx context.Context) (*session.Session, error) {
	data, err := c.client.Get(ctx, c.sessionKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeSession(data)
}

func (c *RedisCache) ClearSession(ctx context.Context) error {
	return c.client.Del(ctx, c.sessionKey).Err()
}

func (c *RedisCache) GetCars(ctx context.Context) ([]domain.Car, error) {
	data, err := c.client.Get(ctx, carsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cars []domain.Car
	if err := json.Unmarshal(data, &cars); err != nil {
		return nil, err
	}
	return cars, nil
}

func (c *RedisCache) SetCars(ctx context.Context, cars []domain.Car) error {
	if c.carsTTL <= 0 {
		return nil
	}
	payload, err := json.Marshal(cars)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, carsKey(), payload, c.carsTTL).Err()
}

func carsKey() string {
	return "cache:public:cars"
}

var _ session.Persister = (*RedisCache)(nil)
