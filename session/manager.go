// Package session binds HTTP requests to identities through an opaque
// cookie that points to a sessionstore record.
//
// A request is either anonymous or authenticated. Anonymous requests may
// still carry a session id when flash messages were queued for them.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrebq/turnstile/auth"
	"github.com/andrebq/turnstile/flash"
	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/andrebq/turnstile/sessionstore"
	"github.com/benbjohnson/clock"
)

const (
	DefaultCookieName  = "turnstile_session"
	DefaultIdleTimeout = 30 * time.Minute
	DefaultLoginPath   = "/login"

	msgInvalidCredentials = "Invalid email or password"
)

type (
	Authenticator interface {
		Authenticate(ctx context.Context, c auth.Credentials) (*auth.Identity, error)
		// Resolve returns nil, nil when the user does not exist anymore.
		Resolve(ctx context.Context, id int64) (*auth.Identity, error)
	}

	Config struct {
		CookieName string
		// SecureCookie should only be disabled for local plain http.
		SecureCookie bool
		IdleTimeout  time.Duration
		LoginPath    string
	}

	Manager struct {
		store sessionstore.Store
		authn Authenticator
		clock clock.Clock
		cfg   Config
	}

	// Session is the state of a single request. The zero value is an
	// anonymous request without a session id.
	Session struct {
		ID       string
		Identity *auth.Identity
		Expiry   time.Time
	}
)

func NewManager(store sessionstore.Store, authn Authenticator, clk clock.Clock, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{store: store, authn: authn, clock: clk, cfg: cfg}
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// ResolveRequest maps the session cookie of r to a Session. A missing,
// malformed, expired or stale cookie yields an anonymous session, errors
// are only returned for backend failures.
func (m *Manager) ResolveRequest(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || !validID(cookie.Value) {
		return &Session{}, nil
	}
	return m.resolve(ctx, cookie.Value)
}

func (m *Manager) resolve(ctx context.Context, id string) (*Session, error) {
	log := logutil.GetOrDefault(ctx)
	rec, err := m.store.Load(ctx, id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return &Session{}, nil
	} else if err != nil {
		return nil, err
	}
	payload, err := decodePayload(rec.Data)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding session with unreadable payload")
		return &Session{}, nil
	}
	sess := &Session{ID: rec.ID, Expiry: rec.Expiry}
	if !payload.authenticated() {
		return sess, nil
	}
	identity, err := m.authn.Resolve(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}
	if identity == nil || !identity.Matches(payload.AuthHash) {
		// user removed or password changed since login
		log.Info().Int64("user", payload.UserID).Msg("Dropping stale session")
		if err := m.store.Delete(ctx, rec.ID); err != nil {
			return nil, err
		}
		return &Session{}, nil
	}
	sess.Identity = identity
	return sess, nil
}

// SignIn authenticates c and, on success, calls Login. Rejected credentials
// keep the state of current and queue a generic error flash, check
// Authenticated on the returned session.
func (m *Manager) SignIn(ctx context.Context, w http.ResponseWriter, current *Session, c auth.Credentials) (*Session, error) {
	identity, err := m.authn.Authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		anon, err := m.Flash(ctx, w, current, flash.Error, msgInvalidCredentials)
		if err != nil {
			return nil, err
		}
		return anon, nil
	}
	return m.Login(ctx, w, current, identity)
}

// Login always issues a new session id, pending flash messages move from
// the previous session to the new one and the previous record is removed.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, current *Session, identity *auth.Identity) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	payload := Payload{UserID: identity.ID, AuthHash: identity.SessionAuthHash}
	if current != nil && current.ID != "" {
		pending, err := m.TakeFlash(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		payload.Flash = pending
	}
	expiry := m.clock.Now().Add(m.cfg.IdleTimeout)
	if err := m.save(ctx, id, payload, expiry); err != nil {
		return nil, err
	}
	if current != nil && current.ID != "" {
		if err := m.store.Delete(ctx, current.ID); err != nil {
			return nil, err
		}
	}
	m.setCookie(w, id, expiry)
	log := logutil.GetOrDefault(ctx)
	log.Info().Int64("user", identity.ID).Msg("User logged in")
	return &Session{ID: id, Identity: identity, Expiry: expiry}, nil
}

// Logout removes the session record and clears the cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, current *Session) (*Session, error) {
	if current != nil && current.ID != "" {
		if err := m.store.Delete(ctx, current.ID); err != nil {
			return nil, err
		}
		if current.Identity != nil {
			log := logutil.GetOrDefault(ctx)
			log.Info().Int64("user", current.Identity.ID).Msg("User logged out")
		}
	}
	m.clearCookie(w)
	return &Session{}, nil
}

// Touch slides the expiry of an authenticated session. When the record
// vanished since it was resolved (a concurrent logout) current becomes
// anonymous and no cookie is sent.
func (m *Manager) Touch(ctx context.Context, w http.ResponseWriter, current *Session) error {
	if !current.Authenticated() || current.ID == "" {
		return nil
	}
	expiry := m.clock.Now().Add(m.cfg.IdleTimeout)
	if expiry.Unix() <= current.Expiry.Unix() {
		return nil
	}
	err := m.store.Touch(ctx, current.ID, expiry)
	if errors.Is(err, sessionstore.ErrNotFound) {
		*current = Session{}
		return nil
	} else if err != nil {
		return err
	}
	current.Expiry = expiry
	m.setCookie(w, current.ID, expiry)
	return nil
}

// Flash queues a message for the next page rendered for current. When
// current has no session id yet an anonymous session is created.
func (m *Manager) Flash(ctx context.Context, w http.ResponseWriter, current *Session, level flash.Level, text string) (*Session, error) {
	if current != nil && current.ID != "" {
		err := m.PushFlash(ctx, current.ID, level, text)
		if err == nil {
			return current, nil
		} else if !errors.Is(err, sessionstore.ErrNotFound) {
			return nil, err
		}
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	var payload Payload
	payload.Flash.Push(level, text)
	expiry := m.clock.Now().Add(m.cfg.IdleTimeout)
	if err := m.save(ctx, id, payload, expiry); err != nil {
		return nil, err
	}
	m.setCookie(w, id, expiry)
	return &Session{ID: id, Expiry: expiry}, nil
}

// PushFlash appends a message to the session id, returns
// sessionstore.ErrNotFound when the session is gone.
func (m *Manager) PushFlash(ctx context.Context, id string, level flash.Level, text string) error {
	rec, payload, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	payload.Flash.Push(level, text)
	return m.update(ctx, id, payload, rec.Expiry)
}

// TakeFlash returns and clears the pending messages of id. A missing
// session has no messages, one removed while reading is not recreated.
func (m *Manager) TakeFlash(ctx context.Context, id string) ([]flash.Message, error) {
	rec, payload, err := m.load(ctx, id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if payload.Flash.Len() == 0 {
		return nil, nil
	}
	msgs := payload.Flash.Drain()
	err = m.update(ctx, id, payload, rec.Expiry)
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		return nil, err
	}
	return msgs, nil
}

func (m *Manager) load(ctx context.Context, id string) (*sessionstore.Record, Payload, error) {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, Payload{}, err
	}
	payload, err := decodePayload(rec.Data)
	if err != nil {
		return nil, Payload{}, fmt.Errorf("session: unable to decode payload, cause %w", err)
	}
	return rec, payload, nil
}

func (m *Manager) save(ctx context.Context, id string, payload Payload, expiry time.Time) error {
	buf, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("session: unable to encode payload, cause %w", err)
	}
	return m.store.Save(ctx, sessionstore.Record{ID: id, Data: buf, Expiry: expiry})
}

// update writes payload only if the record still exists.
func (m *Manager) update(ctx context.Context, id string, payload Payload, expiry time.Time) error {
	buf, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("session: unable to encode payload, cause %w", err)
	}
	return m.store.Update(ctx, sessionstore.Record{ID: id, Data: buf, Expiry: expiry})
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, expiry time.Time) {
	m.dropCookie(w)
	maxAge := int(expiry.Sub(m.clock.Now()) / time.Second)
	if maxAge <= 0 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expiry.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	m.dropCookie(w)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// dropCookie removes session cookies already queued on w, a response
// carries at most one value for the session cookie.
func (m *Manager) dropCookie(w http.ResponseWriter) {
	h := w.Header()
	prefix := m.cfg.CookieName + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
}
