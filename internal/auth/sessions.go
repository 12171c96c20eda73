package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is an active admin login, keyed by the token's jti.
type Session struct {
	ID        string    `json:"id"`
	AdminID   uuid.UUID `json:"admin_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current,omitempty"`
}

// RedisSessions stores sessions as admin:session:<jti> with a per-admin index set.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions creates a Redis session store.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func sessionKey(id string) string { return "admin:session:" + id }

func indexKey(adminID uuid.UUID) string { return "admin:sessions:" + adminID.String() }

// Create stores s until its expiry.
func (r *RedisSessions) Create(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(s.ID), raw, ttl)
	pipe.SAdd(ctx, indexKey(s.AdminID), s.ID)
	pipe.Expire(ctx, indexKey(s.AdminID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Exists reports whether a session is still active.
func (r *RedisSessions) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKey(id)).Result()
	return n > 0, err
}

// List returns the admin's live sessions, newest first. Expired ids are pruned from the index.
func (r *RedisSessions) List(ctx context.Context, adminID uuid.UUID) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, indexKey(adminID)).Result()
	if err != nil {
		return nil, err
	}
	out := []Session{}
	for _, id := range ids {
		raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			r.client.SRem(ctx, indexKey(adminID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Revoke deletes one of the admin's sessions. It reports false when the session was not theirs.
func (r *RedisSessions) Revoke(ctx context.Context, adminID uuid.UUID, id string) (bool, error) {
	removed, err := r.client.SRem(ctx, indexKey(adminID), id).Result()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}
	return true, r.client.Del(ctx, sessionKey(id)).Err()
}

// RevokeAllExcept deletes every session of the admin other than keep.
func (r *RedisSessions) RevokeAllExcept(ctx context.Context, adminID uuid.UUID, keep string) (int, error) {
	ids, err := r.client.SMembers(ctx, indexKey(adminID)).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if id == keep {
			continue
		}
		if _, err := r.Revoke(ctx, adminID, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
