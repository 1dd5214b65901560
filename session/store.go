package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ChatRelay/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound means the id has no record in the store: never created, or
// already expired / destroyed.
var ErrNotFound = errors.New("session not found")

// Store keeps session attributes in a Redis hash per session id, so every
// server instance sees the same session and it survives restarts. The TTL
// is sliding: every touch pushes expiry out again.
type Store struct {
	rdb        *redis.Client
	ttl        time.Duration
	cookieName string
}

func NewStore(rdb *redis.Client, cfg *config.SessionConfig) *Store {
	return &Store{
		rdb:        rdb,
		ttl:        time.Duration(cfg.TTLMinutes) * time.Minute,
		cookieName: cfg.CookieName,
	}
}

func (s *Store) CookieName() string {
	return s.cookieName
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(id string) string {
	return "session:" + id
}

type Session struct {
	ID        string
	values    map[string]string
	fresh     bool
	dirty     bool
	destroyed bool
}

// New creates an unsaved session. The created_at attribute guarantees the
// hash is never empty, an empty HSET would fail.
func (s *Store) New() *Session {
	return &Session{
		ID: uuid.New().String(),
		values: map[string]string{
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
		fresh: true,
		dirty: true,
	}
}

func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	values, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return &Session{ID: id, values: values}, nil
}

// Save writes all attributes and resets the TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	fields := make(map[string]interface{}, len(sess.values))
	for k, v := range sess.values {
		fields[k] = v
	}
	if err := s.rdb.HSet(ctx, s.key(sess.ID), fields).Err(); err != nil {
		return err
	}
	sess.dirty = false
	sess.fresh = false
	return s.rdb.Expire(ctx, s.key(sess.ID), s.ttl).Err()
}

// Touch slides the TTL without rewriting attributes.
func (s *Store) Touch(ctx context.Context, sess *Session) error {
	return s.rdb.Expire(ctx, s.key(sess.ID), s.ttl).Err()
}

func (s *Store) Destroy(ctx context.Context, sess *Session) error {
	sess.destroyed = true
	return s.rdb.Del(ctx, s.key(sess.ID)).Err()
}

func (sess *Session) Get(key string) string {
	return sess.values[key]
}

func (sess *Session) GetInt(key string) int {
	n, err := strconv.Atoi(sess.values[key])
	if err != nil {
		return 0
	}
	return n
}

func (sess *Session) Set(key, value string) {
	sess.values[key] = value
	sess.dirty = true
}

func (sess *Session) SetInt(key string, value int) {
	sess.Set(key, strconv.Itoa(value))
}

func (sess *Session) Delete(key string) {
	delete(sess.values, key)
	sess.dirty = true
}

// MarkDestroyed flags the session so the middleware drops the record and
// clears the cookie after the handler returns.
func (sess *Session) MarkDestroyed() {
	sess.destroyed = true
}

func (sess *Session) IsNew() bool {
	return sess.fresh
}

func (sess *Session) IsDestroyed() bool {
	return sess.destroyed
}
