// Package session provides redis-backed request sessions. A session carries
// a login id and a mutable attribute bag; the "role" and "group" attributes
// feed identity resolution.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/folio-cms/folio/pkg/apperr"
)

// Attribute keys used by identity resolution.
const (
	AttrRole  = "role"
	AttrGroup = "group"
)

// Session associates a request with a claimed identity and attribute bag.
type Session struct {
	ID         string            `json:"id"`
	Login      string            `json:"login"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Authenticated reports whether the session carries a signed-in identity.
func (s *Session) Authenticated() bool {
	return s.Login != ""
}

// Role returns the session's role attribute.
func (s *Session) Role() string {
	return s.Attributes[AttrRole]
}

// Group returns the session's group attribute, empty when unset.
func (s *Session) Group() string {
	return s.Attributes[AttrGroup]
}

// Store persists sessions in redis with a sliding TTL.
type Store struct {
	client        *redis.Client
	ttl           time.Duration
	anonymousRole string
}

// NewStore creates a session store. anonymousRole is stamped onto a session
// exactly once, at creation; it is never reapplied to an existing session.
func NewStore(client *redis.Client, ttl time.Duration, anonymousRole string) *Store {
	return &Store{
		client:        client,
		ttl:           ttl,
		anonymousRole: anonymousRole,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Create makes a new anonymous session.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:    uuid.New().String(),
		Login: "",
		Attributes: map[string]string{
			AttrRole: s.anonymousRole,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session and extends its TTL. An unknown or lapsed id returns
// ErrUnauthorized.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: session expired or unknown", apperr.ErrUnauthorized)
	} else if err != nil {
		return nil, apperr.Storage("session get", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		s.client.Del(ctx, sessionKey(id))
		return nil, apperr.Storage("session decode", err)
	}

	// Sliding expiry; attributes are left untouched on read.
	if err := s.client.Expire(ctx, sessionKey(id), s.ttl).Err(); err != nil {
		return nil, apperr.Storage("session touch", err)
	}
	return &sess, nil
}

// Authenticate binds a login and role to the session after sign-in.
func (s *Store) Authenticate(ctx context.Context, id, login, role string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Login = login
	sess.Attributes[AttrRole] = role
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetAttribute updates a single attribute on an existing session.
func (s *Store) SetAttribute(ctx context.Context, id, key, value string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Attributes[key] = value
	return s.save(ctx, sess)
}

// SignOut strips the identity from a session but keeps the session alive,
// so the bearer continues as anonymous without a new cookie.
func (s *Store) SignOut(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Login = ""
	sess.Attributes = map[string]string{
		AttrRole: s.anonymousRole,
	}
	return s.save(ctx, sess)
}

// Destroy removes a session entirely.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return apperr.Storage("session delete", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apperr.Storage("session encode", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return apperr.Storage("session set", err)
	}
	return nil
}
