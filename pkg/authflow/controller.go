package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/config"
	"codebuddy-hq/relay/pkg/credential"
)

// LoginBackend is the slice of the backend client the controller needs.
type LoginBackend interface {
	StartLogin(ctx context.Context) (*backend.LoginChallenge, error)
	PollLogin(ctx context.Context, state string) (*backend.LoginPoll, error)
}

// Controller drives asynchronous login sessions. Starting a session obtains
// a browser URL from the backend and spawns a poller; the poller advances
// the session to exactly one terminal state and, on success, saves the
// obtained token as a credential file.
type Controller struct {
	client LoginBackend
	store  *credential.Store
	cfg    config.AuthConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	// onSaved is invoked after a credential file is written, letting the
	// wiring trigger a pool reload without coupling the controller to the
	// rotation manager.
	onSaved func()

	// onFinished is invoked with the terminal status of each finished
	// session, letting the wiring count outcomes.
	onFinished func(status SessionStatus)

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewController creates a login controller.
func NewController(client LoginBackend, store *credential.Store, cfg config.AuthConfig) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:   client,
		store:    store,
		cfg:      cfg,
		logger:   slog.Default().With("component", "authflow"),
		sessions: make(map[string]*Session),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// SetOnCredentialSaved registers a hook called after each saved credential.
func (c *Controller) SetOnCredentialSaved(fn func()) {
	c.onSaved = fn
}

// SetOnSessionFinished registers a hook called with the terminal status of
// each finished session.
func (c *Controller) SetOnSessionFinished(fn func(status SessionStatus)) {
	c.onFinished = fn
}

// StartSession begins a new login session. The returned session carries the
// browser URL; the caller polls GetSession with the session ID to observe
// progress. Sessions are fully independent and any number may run at once.
func (c *Controller) StartSession(ctx context.Context) (*Session, error) {
	challenge, err := c.client.StartLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start login: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		AuthURL:   challenge.AuthURL,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		state:     challenge.State,
	}

	c.mu.Lock()
	c.sessions[session.ID] = session
	c.mu.Unlock()

	c.wg.Add(1)
	go c.poll(session.ID, challenge.State)

	c.logger.Info("login session started", "session_id", session.ID)
	return session.clone(), nil
}

// GetSession returns a snapshot of the session with the given ID. Reading a
// pending session refreshes its timestamp, so a session a client is actively
// polling is never garbage collected out from under it.
func (c *Controller) GetSession(id string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[id]
	if !ok {
		return nil, false
	}
	if !session.Status.Terminal() {
		session.UpdatedAt = time.Now()
	}
	return session.clone(), true
}

// poll drives one session to a terminal state.
func (c *Controller) poll(sessionID, state string) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for polls := 0; polls < c.cfg.MaxPolls; polls++ {
		select {
		case <-c.baseCtx.Done():
			return
		case <-ticker.C:
		}

		result, err := c.client.PollLogin(c.baseCtx, state)
		c.recordPoll(sessionID)

		if err != nil {
			if c.baseCtx.Err() != nil {
				return
			}
			c.finish(sessionID, StatusFailed, func(s *Session) {
				s.Error = err.Error()
			})
			return
		}

		if result.Pending {
			continue
		}

		credID, userID, err := c.saveCredential(result.Token)
		if err != nil {
			c.finish(sessionID, StatusFailed, func(s *Session) {
				s.Error = err.Error()
			})
			return
		}

		c.finish(sessionID, StatusCompleted, func(s *Session) {
			s.CredentialID = credID
			s.UserID = userID
		})
		return
	}

	c.finish(sessionID, StatusExpired, nil)
}

// saveCredential turns a granted token into a stored credential record.
func (c *Controller) saveCredential(token *backend.TokenData) (credID, userID string, err error) {
	userID = userIDFromToken(token.AccessToken)
	if userID == "" {
		userID = token.Domain
	}
	if userID == "" {
		userID = "unknown"
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	now := time.Now()
	rec := &credential.Record{
		ID:           credentialFileID(userID, now),
		BearerToken:  token.AccessToken,
		UserID:       userID,
		CreatedAt:    now.Unix(),
		ExpiresIn:    token.ExpiresIn,
		RefreshToken: token.RefreshToken,
		TokenType:    tokenType,
		Scope:        token.Scope,
		Domain:       token.Domain,
		SessionState: token.SessionState,
	}

	if err := c.store.Save(rec); err != nil {
		return "", "", err
	}
	if c.onSaved != nil {
		c.onSaved()
	}
	return rec.ID, userID, nil
}

func (c *Controller) recordPoll(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		s.Polls++
		if !s.Status.Terminal() {
			s.UpdatedAt = time.Now()
		}
	}
}

func (c *Controller) finish(sessionID string, status SessionStatus, update func(*Session)) {
	c.mu.Lock()

	s, ok := c.sessions[sessionID]
	if !ok || s.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	if update != nil {
		update(s)
	}
	polls := s.Polls
	c.mu.Unlock()

	c.logger.Info("login session finished",
		"session_id", sessionID,
		"status", status,
		"polls", polls)

	if c.onFinished != nil {
		c.onFinished(status)
	}
}

// GC removes terminal sessions that finished longer than ttl ago and
// expires pending sessions untouched for that long. A stale pending session
// is never deleted outright: it transitions to expired in place, so a late
// status poll observes the outcome instead of an unknown session. Returns
// the number of sessions removed.
func (c *Controller) GC(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	c.mu.Lock()
	removed := 0
	expired := 0
	for id, s := range c.sessions {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}
		if s.Status.Terminal() {
			delete(c.sessions, id)
			removed++
			continue
		}
		s.Status = StatusExpired
		s.UpdatedAt = time.Now()
		expired++
	}
	c.mu.Unlock()

	if expired > 0 {
		c.logger.Info("expired stale login sessions", "count", expired)
		if c.onFinished != nil {
			for i := 0; i < expired; i++ {
				c.onFinished(StatusExpired)
			}
		}
	}
	return removed
}

// SessionCount returns the number of tracked sessions.
func (c *Controller) SessionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Close stops all pollers and waits for them to exit.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// credentialFileID builds a filesystem-safe credential file name stem.
func credentialFileID(userID string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, userID)
	if len(safe) > 20 {
		safe = safe[:20]
	}
	return fmt.Sprintf("codebuddy_%s_%d", safe, now.Unix())
}
