// forum/session.go
package forum

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
)

// SessionLifetime is fixed from issuance; activity does not extend it.
const SessionLifetime = 7 * 24 * time.Hour

const (
	sessionUserID   = "userID"
	sessionUsername = "username"
	sessionIsAdmin  = "isAdmin"
)

// Session is the authenticated identity of one request.
type Session struct {
	Identity
}

// NewSessionManager builds the cookie-backed session manager. A nil store
// keeps sessions in process memory.
func NewSessionManager(store scs.Store, secure bool) *scs.SessionManager {
	sm := scs.New()
	sm.Lifetime = SessionLifetime
	sm.Cookie.Name = "forum_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	if store != nil {
		sm.Store = store
	}
	return sm
}

// startSession binds a fresh token to ident.
func startSession(ctx context.Context, sm *scs.SessionManager, ident Identity) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, sessionUserID, ident.UserID)
	sm.Put(ctx, sessionUsername, ident.Username)
	sm.Put(ctx, sessionIsAdmin, ident.IsAdmin)
	return nil
}

// loadSession returns the request's session; ok is false when nobody is
// logged in.
func loadSession(ctx context.Context, sm *scs.SessionManager) (Session, bool) {
	id := sm.GetInt64(ctx, sessionUserID)
	if id == 0 {
		return Session{}, false
	}
	return Session{Identity: Identity{
		UserID:   id,
		Username: sm.GetString(ctx, sessionUsername),
		IsAdmin:  sm.GetBool(ctx, sessionIsAdmin),
	}}, true
}

// RedisStore keeps scs session data in Redis so several server processes
// can share sessions. Keys expire with the session.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "forum:session:"}
}

// Find implements scs.Store.
func (s *RedisStore) Find(token string) ([]byte, bool, error) {
	b, err := s.client.Get(context.Background(), s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Commit implements scs.Store.
func (s *RedisStore) Commit(token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return s.Delete(token)
	}
	return s.client.Set(context.Background(), s.prefix+token, b, ttl).Err()
}

// Delete implements scs.Store.
func (s *RedisStore) Delete(token string) error {
	return s.client.Del(context.Background(), s.prefix+token).Err()
}
