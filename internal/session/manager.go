// Package session keeps login sessions in Redis behind an opaque cookie.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when the request carries no live session.
var ErrNoSession = errors.New("no active session")

const keyPrefix = "session:"

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string    `json:"-"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager issues, loads and destroys sessions.
type Manager struct {
	client     redis.UniversalClient
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

func NewManager(client redis.UniversalClient, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		now:        time.Now,
	}
}

// Create starts a fresh session for accountID and sets the cookie. Any
// session the request already carried is discarded first, so a login
// never reuses a pre-existing session ID.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*Session, error) {
	if prev, ok := sessionIDFromCookie(r, m.cookieName); ok {
		if err := m.client.Del(ctx, m.redisKey(prev)).Err(); err != nil {
			return nil, fmt.Errorf("failed to discard previous session: %w", err)
		}
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	sess := &Session{
		ID:        id.String(),
		AccountID: accountID,
		CreatedAt: m.now().UTC(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := m.client.Set(ctx, m.redisKey(sess.ID), data, m.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	setSessionCookie(w, sess.ID, m.now().Add(m.ttl), m.ttl, m.cookieConfig())

	return sess, nil
}

// Load returns the session named by the request cookie, or ErrNoSession.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	id, ok := sessionIDFromCookie(r, m.cookieName)
	if !ok {
		return nil, ErrNoSession
	}

	data, err := m.client.Get(ctx, m.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	sess.ID = id

	return &sess, nil
}

// Destroy deletes the request's session, if any, and expires the cookie.
// It is safe to call without a session.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if id, ok := sessionIDFromCookie(r, m.cookieName); ok {
		if err := m.client.Del(ctx, m.redisKey(id)).Err(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	clearSessionCookie(w, m.cookieConfig())
	return nil
}

// Ping checks the Redis connection for health reporting.
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) cookieConfig() cookieConfig {
	return cookieConfig{Name: m.cookieName, Secure: m.secure}
}

func (m *Manager) redisKey(id string) string {
	return keyPrefix + id
}
