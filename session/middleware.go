package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/andrebq/turnstile/auth"
	"github.com/andrebq/turnstile/internal/logutil"
)

type (
	sessionKey struct{}
)

// Attach resolves the session of every request and stores it in the request
// context, authenticated sessions have their expiry extended.
func (m *Manager) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logutil.GetOrDefault(ctx)
		sess, err := m.ResolveRequest(ctx, r)
		if err != nil {
			log.Error().Err(err).Msg("Unable to resolve session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := m.Touch(ctx, w, sess); err != nil {
			log.Error().Err(err).Msg("Unable to extend session expiry")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if sess.Authenticated() {
			ctx = logutil.WithLogger(ctx, log.With().Int64("user", sess.Identity.ID).Logger())
		}
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
	})
}

// Require lets authenticated requests through and redirects anonymous ones
// to the login page with the requested path in the next parameter. It must
// run after Attach.
func (m *Manager) Require(protected http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated() {
			http.Redirect(w, r, m.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

// LoginURL returns the login path with next attached when next is a safe
// local path.
func (m *Manager) LoginURL(next string) string {
	if next == "" || SafeNext(next) != next {
		return m.cfg.LoginPath
	}
	return m.cfg.LoginPath + "?next=" + url.QueryEscape(next)
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext never returns nil, requests without a session are anonymous.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	if s == nil {
		return &Session{}
	}
	return s
}

func CurrentIdentity(ctx context.Context) *auth.Identity {
	return FromContext(ctx).Identity
}

// SafeNext returns next when it is a path on this site, "/" otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	return next
}
