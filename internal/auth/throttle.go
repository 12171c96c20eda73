package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MaxLoginFailures within LoginWindow locks further attempts for that email.
	MaxLoginFailures = 5
	LoginWindow      = 15 * time.Minute
)

// RedisThrottle counts failed logins per email with an expiring counter.
type RedisThrottle struct {
	client *redis.Client
}

// NewRedisThrottle creates a login throttle.
func NewRedisThrottle(client *redis.Client) *RedisThrottle {
	return &RedisThrottle{client: client}
}

func throttleKey(email string) string {
	return "admin:login_failures:" + strings.ToLower(strings.TrimSpace(email))
}

// Locked reports whether the email has used up its attempts.
func (t *RedisThrottle) Locked(ctx context.Context, email string) (bool, error) {
	n, err := t.client.Get(ctx, throttleKey(email)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= MaxLoginFailures, nil
}

// Fail records a failed attempt; the window starts at the first failure.
func (t *RedisThrottle) Fail(ctx context.Context, email string) error {
	key := throttleKey(email)
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.client.Expire(ctx, key, LoginWindow).Err()
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *RedisThrottle) Reset(ctx context.Context, email string) error {
	return t.client.Del(ctx, throttleKey(email)).Err()
}
