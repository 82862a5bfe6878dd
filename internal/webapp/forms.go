package webapp

import (
	"net/http"
	"net/mail"
	"strings"
)

const (
	minPasswordLength = 8
)

type (
	fieldErrors map[string]string

	loginForm struct {
		Email    string
		Password string
		Next     string
		Errors   fieldErrors
	}

	registerForm struct {
		Email           string
		Password        string
		ConfirmPassword string
		Errors          fieldErrors
	}

	profileForm struct {
		DisplayName string
		Errors      fieldErrors
	}
)

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func parseLogin(r *http.Request) loginForm {
	f := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Next:     r.URL.Query().Get("next"),
		Errors:   fieldErrors{},
	}
	if f.Email == "" {
		f.Errors["email"] = "Email is required"
	} else if !validEmail(f.Email) {
		f.Errors["email"] = "Invalid email address"
	}
	if f.Password == "" {
		f.Errors["password"] = "Password is required"
	}
	return f
}

func parseRegister(r *http.Request) registerForm {
	f := registerForm{
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Errors:          fieldErrors{},
	}
	if !validEmail(f.Email) {
		f.Errors["email"] = "Invalid email address"
	}
	if len(f.Password) < minPasswordLength {
		f.Errors["password"] = "Password must be at least 8 characters long"
	}
	if f.ConfirmPassword != f.Password {
		f.Errors["confirm_password"] = "Passwords do not match"
	}
	return f
}

func parseProfile(r *http.Request) profileForm {
	f := profileForm{
		DisplayName: strings.TrimSpace(r.PostFormValue("display_name")),
		Errors:      fieldErrors{},
	}
	if f.DisplayName == "" {
		f.Errors["display_name"] = "Display name is required"
	}
	return f
}

// withoutSecrets keeps what the form needs to be shown again.
func (f loginForm) withoutSecrets() loginForm {
	f.Password = ""
	return f
}

func (f registerForm) withoutSecrets() registerForm {
	f.Password = ""
	f.ConfirmPassword = ""
	return f
}
