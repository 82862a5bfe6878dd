package webapp

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/andrebq/turnstile/flash"
	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/andrebq/turnstile/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type (
	page struct {
		Title    string
		SignedIn bool
		UserID   int64
		Messages []flash.Message
		Content  interface{}
	}

	pages map[string]*template.Template
)

func loadPages() (pages, error) {
	out := pages{}
	for _, name := range []string{"index", "public", "protected", "login", "register", "profile"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", fmt.Sprintf("templates/%v.html", name))
		if err != nil {
			return nil, fmt.Errorf("webapp: unable to parse template %v, cause %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// render drains the pending flash messages of the current session into the
// page, they are shown exactly once.
func (a *App) render(w http.ResponseWriter, r *http.Request, status int, name, title string, content interface{}) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	sess := session.FromContext(ctx)
	p := page{
		Title:    title,
		SignedIn: sess.Authenticated(),
		Content:  content,
	}
	if sess.Authenticated() {
		p.UserID = sess.Identity.ID
	}
	if sess.ID != "" {
		msgs, err := a.sessions.TakeFlash(ctx, sess.ID)
		if err != nil {
			log.Error().Err(err).Msg("Unable to read flash messages")
		}
		p.Messages = msgs
	}
	var buf bytes.Buffer
	if err := a.pages[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Unable to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
