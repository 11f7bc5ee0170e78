package http

import (
	"errors"
	"net/http"

	"expensebook/internal/backend"
	"expensebook/internal/core"
	applog "expensebook/internal/log"
	"expensebook/internal/session"
)

type authPageData struct {
	Error string
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signin_page", authPageData{})
	case http.MethodPost:
		s.signin(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "signin_page", authPageData{Error: "Invalid request"})
		return
	}

	creds := backend.Credentials{
		Username: sanitizeInput(r.Form.Get("username")),
		Password: r.Form.Get("password"),
	}

	bs, err := s.api.Login(r.Context(), creds)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Login failed", "username", creds.Username, applog.FieldError, err)
		s.render(w, r, "signin_page", authPageData{Error: loginFailureMessage(err)})
		return
	}

	s.sessions.Begin(w, bs)
	s.subs.Track(bs)
	s.logger.InfoContext(r.Context(), "User signed in", applog.FieldUserID, bs.User.ID, "username", bs.User.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signup_page", authPageData{})
	case http.MethodPost:
		s.signup(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "signup_page", authPageData{Error: "Invalid request"})
		return
	}

	reg := backend.Registration{
		Username: sanitizeInput(r.Form.Get("username")),
		Email:    sanitizeInput(r.Form.Get("email")),
		Password: r.Form.Get("password"),
	}

	bs, err := s.api.Register(r.Context(), reg)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Registration failed", "username", reg.Username, applog.FieldError, err)
		s.render(w, r, "signup_page", authPageData{Error: loginFailureMessage(err)})
		return
	}

	s.sessions.Begin(w, bs)
	s.subs.Track(bs)
	s.logger.InfoContext(r.Context(), "User registered", applog.FieldUserID, bs.User.ID, "username", bs.User.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.api.Logout(r.Context()); err != nil {
		// The local session dies either way.
		s.logger.WarnContext(r.Context(), "Backend logout failed", applog.FieldError, err)
	}
	s.sessions.Clear(w, r)
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

type profilePageData struct {
	User    core.User
	Profile core.Profile
	Error   string
	Saved   bool
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.api.Profile(r.Context())
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Profile load failed", applog.FieldError, err)
		}
		s.render(w, r, "profile_page", profilePageData{User: sess.Backend.User, Profile: profile})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.render(w, r, "profile_page", profilePageData{User: sess.Backend.User, Error: "Invalid request"})
			return
		}

		update := core.Profile{
			Username:    sanitizeInput(r.Form.Get("username")),
			Email:       sanitizeInput(r.Form.Get("email")),
			Description: sanitizeInput(r.Form.Get("description")),
		}
		if raw := r.Form.Get("target"); raw != "" {
			cents, err := core.ParseDecimalToCents(raw)
			if err != nil {
				profile, _ := s.api.Profile(r.Context())
				s.render(w, r, "profile_page", profilePageData{
					User:    sess.Backend.User,
					Profile: profile,
					Error:   "Savings target must be a positive amount",
				})
				return
			}
			update.Target = core.Money{Cents: cents}
		}

		profile, err := s.api.UpdateProfile(r.Context(), update)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Profile update failed", applog.FieldError, err)
			s.render(w, r, "profile_page", profilePageData{
				User:    sess.Backend.User,
				Profile: update,
				Error:   "Could not save profile",
			})
			return
		}
		s.render(w, r, "profile_page", profilePageData{User: sess.Backend.User, Profile: profile, Saved: true})

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func loginFailureMessage(err error) string {
	switch {
	case errors.Is(err, backend.ErrRejected):
		return rejectionMessage(err)
	case errors.Is(err, backend.ErrUnavailable):
		return "The expense service is unreachable. Try again in a moment."
	default:
		return "Something went wrong. Try again."
	}
}

// rejectionMessage strips the sentinel prefix so the user sees only
// the server's reason.
func rejectionMessage(err error) string {
	msg := err.Error()
	const prefix = "backend: request rejected: "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return "Request rejected"
}
