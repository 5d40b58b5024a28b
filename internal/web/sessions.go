package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/platform/notification"
	"github.com/emr/console/internal/platform/websocket"
	"github.com/emr/console/internal/resource"
)

// SessionCookie carries the browser session id.
const SessionCookie = "console_session"

const sessionKey = "session"

// DefaultIdleTimeout is used when SessionsConfig.IdleTimeout is not set.
const DefaultIdleTimeout = 30 * time.Minute

// Session is one browser's state: its pending toasts and one manager per
// resource it has opened.
type Session struct {
	ID     string
	Toasts *notification.Queue

	mu       sync.Mutex
	managers map[string]entity.Managed
	watching map[string]func()
	lastSeen time.Time
}

// watch runs subscribe the first time slug is watched and keeps the
// returned unsubscribe func until the session closes.
func (s *Session) watch(slug string, subscribe func() func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watching[slug]; ok {
		return
	}
	if s.watching == nil {
		s.watching = make(map[string]func())
	}
	s.watching[slug] = subscribe()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.mu.Lock()
	ms := s.managers
	s.managers = map[string]entity.Managed{}
	ws := s.watching
	s.watching = nil
	s.mu.Unlock()

	for _, unsubscribe := range ws {
		unsubscribe()
	}
	for _, m := range ms {
		m.Close()
	}
}

// SessionsConfig configures a session registry.
type SessionsConfig struct {
	// Base is copied into every manager the registry opens. Its Notifier is
	// replaced by the session's own.
	Base        resource.Config
	Publisher   websocket.Publisher
	IdleTimeout time.Duration
	// Secure marks the session cookie https-only.
	Secure bool
	Logger zerolog.Logger
}

// Sessions keeps per-browser managers so that two tabs in different
// browsers never share a query or a cache.
type Sessions struct {
	cfg SessionsConfig
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Sessions{cfg: cfg, now: time.Now, sessions: make(map[string]*Session)}
}

// Start creates a new session.
func (s *Sessions) Start() *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Toasts:   notification.NewQueue(notification.DefaultQueueSize),
		managers: make(map[string]entity.Managed),
		lastSeen: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and marks it as used.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Manager returns the session's manager for res, opening it on first use.
func (s *Sessions) Manager(sess *Session, res entity.Resource) entity.Managed {
	slug := res.Describe().Slug

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if m, ok := sess.managers[slug]; ok {
		return m
	}

	cfg := s.cfg.Base
	cfg.Logger = s.cfg.Logger.With().Str("session_id", sess.ID).Str("resource", slug).Logger()
	cfg.Notifier = notification.Fanout(
		sess.Toasts,
		s.push(sess.ID),
		notification.Log{Logger: cfg.Logger},
	)
	m := res.Open(cfg)
	sess.managers[slug] = m
	return m
}

func (s *Sessions) push(sessionID string) resource.Notifier {
	if s.cfg.Publisher == nil {
		return nil
	}
	return notification.Push{Publisher: s.cfg.Publisher, SessionID: sessionID, Logger: s.cfg.Logger}
}

// Sweep closes and forgets sessions idle for longer than the idle timeout.
// It returns the number evicted.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.close()
	}
	if len(idle) > 0 {
		s.cfg.Logger.Debug().Int("evicted", len(idle)).Msg("evicted idle sessions")
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close closes every session's managers.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
}

// Middleware resolves the session from its cookie, starting a new one when
// the cookie is missing or names an evicted session.
func (s *Sessions) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var sess *Session
			if ck, err := c.Cookie(SessionCookie); err == nil {
				sess, _ = s.Get(ck.Value)
			}
			if sess == nil {
				sess = s.Start()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					Secure:   s.cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

// SessionID returns the id of the request's live session, or "" when there
// is none. It never starts a session.
func (s *Sessions) SessionID(c echo.Context) string {
	ck, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	if _, ok := s.Get(ck.Value); !ok {
		return ""
	}
	return ck.Value
}

func sessionFrom(c echo.Context) *Session {
	sess, _ := c.Get(sessionKey).(*Session)
	return sess
}
