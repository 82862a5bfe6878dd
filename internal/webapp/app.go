// Package webapp is the HTML and JSON surface of turnstile: login, logout,
// registration, profile editing and a few pages to exercise the guard.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andrebq/turnstile/auth"
	"github.com/andrebq/turnstile/flash"
	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/andrebq/turnstile/profile"
	"github.com/andrebq/turnstile/session"
	"github.com/andrebq/turnstile/users"
	"github.com/julienschmidt/httprouter"
)

type (
	Registrar interface {
		Register(ctx context.Context, email, password string) (*auth.Identity, error)
	}

	Profiles interface {
		Get(ctx context.Context, userID int64) (*profile.Profile, error)
		Save(ctx context.Context, p profile.Profile) error
	}

	App struct {
		sessions  *session.Manager
		registrar Registrar
		profiles  Profiles
		pages     pages
	}

	whoami struct {
		Authenticated bool  `json:"authenticated"`
		ID            int64 `json:"id"`
	}
)

func New(sessions *session.Manager, registrar Registrar, profiles Profiles) (*App, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &App{sessions: sessions, registrar: registrar, profiles: profiles, pages: p}, nil
}

// Handler returns every route, each request has its session resolved before
// reaching the router.
func (a *App) Handler() http.Handler {
	router := httprouter.New()
	guard := a.sessions.Require

	router.HandlerFunc("GET", "/", a.index)
	router.HandlerFunc("GET", "/public", a.public)
	router.Handler("GET", "/protected", guard(http.HandlerFunc(a.protected)))

	router.HandlerFunc("GET", "/login", a.loginPage)
	router.HandlerFunc("POST", "/login", a.login)
	router.HandlerFunc("GET", "/logout", a.logout)
	router.HandlerFunc("POST", "/logout", a.logout)
	router.HandlerFunc("GET", "/register", a.registerPage)
	router.HandlerFunc("POST", "/register", a.register)

	router.Handler("GET", "/user/profile", guard(http.HandlerFunc(a.profilePage)))
	router.Handler("POST", "/user/profile", guard(http.HandlerFunc(a.saveProfile)))

	router.HandlerFunc("GET", "/api/whoami", a.whoami)
	return a.sessions.Attach(router)
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "index", "Home", nil)
}

func (a *App) public(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "public", "Public", nil)
}

func (a *App) protected(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "protected", "Private", nil)
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "login", "Log in", loginForm{
		Next:   r.URL.Query().Get("next"),
		Errors: fieldErrors{},
	})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := parseLogin(r)
	if len(form.Errors) > 0 {
		a.render(w, r, http.StatusUnprocessableEntity, "login", "Log in", form.withoutSecrets())
		return
	}
	sess, err := a.sessions.SignIn(ctx, w, session.FromContext(ctx), auth.Credentials{
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		serverError(w, r, err, "Failed to authenticate user")
		return
	}
	if !sess.Authenticated() {
		// the rejection flash lives in sess, render with it
		a.render(w, r.WithContext(session.WithSession(ctx, sess)), http.StatusOK, "login", "Log in", form.withoutSecrets())
		return
	}
	http.Redirect(w, r, session.SafeNext(form.Next), http.StatusSeeOther)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, err := a.sessions.Logout(ctx, w, session.FromContext(ctx))
	if err != nil {
		serverError(w, r, err, "Failed to logout")
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (a *App) registerPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "register", "Sign up", registerForm{Errors: fieldErrors{}})
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := parseRegister(r)
	if len(form.Errors) > 0 {
		a.render(w, r, http.StatusUnprocessableEntity, "register", "Sign up", form.withoutSecrets())
		return
	}
	_, err := a.registrar.Register(ctx, form.Email, form.Password)
	if errors.Is(err, users.ErrConflict) {
		form.Errors["email"] = "User already exists"
		a.render(w, r, http.StatusConflict, "register", "Sign up", form.withoutSecrets())
		return
	} else if err != nil {
		serverError(w, r, err, "Failed to create user")
		return
	}
	_, err = a.sessions.Flash(ctx, w, session.FromContext(ctx), flash.Success, "Account created, you can log in now")
	if err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unable to queue registration message")
	}
	http.Redirect(w, r, "/login?registered=true", http.StatusSeeOther)
}

func (a *App) profilePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := session.CurrentIdentity(ctx)
	form := profileForm{Errors: fieldErrors{}}
	p, err := a.profiles.Get(ctx, id.ID)
	if err == nil {
		form.DisplayName = p.DisplayName
	} else if !errors.Is(err, profile.ErrNotFound) {
		serverError(w, r, err, "Failed to load profile")
		return
	}
	a.render(w, r, http.StatusOK, "profile", "Profile", form)
}

func (a *App) saveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	form := parseProfile(r)
	if len(form.Errors) > 0 {
		a.render(w, r, http.StatusUnprocessableEntity, "profile", "Profile", form)
		return
	}
	err := a.profiles.Save(ctx, profile.Profile{UserID: sess.Identity.ID, DisplayName: form.DisplayName})
	if err != nil {
		serverError(w, r, err, "Failed to save profile")
		return
	}
	if err := a.sessions.PushFlash(ctx, sess.ID, flash.Success, "Profile updated"); err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unable to queue profile message")
	}
	http.Redirect(w, r, "/user/profile", http.StatusSeeOther)
}

func (a *App) whoami(w http.ResponseWriter, r *http.Request) {
	var out whoami
	if id := session.CurrentIdentity(r.Context()); id != nil {
		out = whoami{Authenticated: true, ID: id.ID}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
