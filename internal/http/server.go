// Package http serves the web UI. Pages are rendered server-side from
// embedded templates; the dynamic parts are htmx partials driven by
// HX-Trigger events, so handlers stay small and the per-session state
// lives in the dashboard model, not in the browser.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensebook/internal/alerts"
	"expensebook/internal/backend"
	"expensebook/internal/cache"
	"expensebook/internal/history"
	applog "expensebook/internal/log"
	"expensebook/internal/middleware/ratelimit"
	"expensebook/internal/middleware/security"
	"expensebook/internal/middleware/trace"
	"expensebook/internal/session"
	"expensebook/internal/subscriptions"
	appweb "expensebook/web"
)

const handlerTimeout = 7 * time.Second

type Server struct {
	http.Server

	templates *template.Template
	logger    *slog.Logger

	api      backend.Backend
	sessions *session.Manager
	subs     *subscriptions.Manager
	monitor  *alerts.Monitor

	limiter *ratelimit.Limiter

	// historyCache keeps aggregated history per user between
	// renders; mutations drop the entry.
	historyCache *cache.LRUCache[history.History]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Options collects server dependencies. Monitor may be nil when no
// broker is configured.
type Options struct {
	Addr          string
	Backend       backend.Backend
	Sessions      *session.Manager
	Subscriptions *subscriptions.Manager
	Monitor       *alerts.Monitor
	Logger        *slog.Logger
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	s := &Server{
		templates:    parseTemplates(logger),
		logger:       logger,
		api:          opts.Backend,
		sessions:     opts.Sessions,
		subs:         opts.Subscriptions,
		monitor:      opts.Monitor,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		historyCache: cache.NewLRUCache[history.History](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.historyCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	// Pages
	mux.HandleFunc("/", s.protect(s.handleDashboardPage))
	mux.HandleFunc("/history", s.protect(s.handleHistoryPage))
	mux.HandleFunc("/subscriptions", s.protect(s.handleSubscriptionsPage))
	mux.HandleFunc("/profile", s.protect(s.handleProfile))
	mux.HandleFunc("/signin", s.public(s.handleSignin))
	mux.HandleFunc("/signup", s.public(s.handleSignup))
	mux.HandleFunc("/logout", s.protect(s.handleLogout))

	// Dashboard partials
	mux.HandleFunc("/ui/expense/list", s.protect(s.handleExpenseList))
	mux.HandleFunc("/ui/expense/new", s.protect(s.handleExpenseNew))
	mux.HandleFunc("/ui/expense/edit", s.protect(s.handleExpenseEdit))
	mux.HandleFunc("/ui/expense/field", s.protect(s.handleExpenseField))
	mux.HandleFunc("/ui/expense/cancel", s.protect(s.handleExpenseCancel))
	mux.HandleFunc("/ui/expense/submit", s.protect(s.handleExpenseSubmit))
	mux.HandleFunc("/ui/expense/delete", s.protect(s.handleExpenseDelete))
	mux.HandleFunc("/ui/expense/reorder", s.protect(s.handleExpenseReorder))
	mux.HandleFunc("/ui/total", s.protect(s.handleLatestMonthTotal))

	// History partials
	mux.HandleFunc("/ui/history/overview", s.protect(s.handleHistoryOverview))
	mux.HandleFunc("/ui/history/pie", s.protect(s.handleHistoryPie))
	mux.HandleFunc("/ui/history/trend", s.protect(s.handleHistoryTrend))

	// Subscription partials
	mux.HandleFunc("/ui/subscription/list", s.protect(s.handleSubscriptionList))
	mux.HandleFunc("/ui/subscription/add", s.protect(s.handleSubscriptionAdd))
	mux.HandleFunc("/ui/subscription/delete", s.protect(s.handleSubscriptionDelete))
	mux.HandleFunc("/ui/subscription/toggle", s.protect(s.handleSubscriptionToggle))

	traced := trace.NewMiddleware(clientIP).Middleware(
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(mux))

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: traced,
	}
	return s
}

func parseTemplates(logger *slog.Logger) *template.Template {
	t, err := template.New("").Funcs(template.FuncMap{
		"money": formatAmount,
		"inc":   func(i int) int { return i + 1 },
		"dec":   func(i int) int { return i - 1 },
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
		return nil
	}
	return t
}

// protect requires a live session, rate-limits writes and deadlines
// the handler. Handlers get the session explicitly instead of digging
// it out of the request.
func (s *Server) protect(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		sess, err := s.sessions.Load(r)
		if err != nil {
			if isPartial(r) {
				// htmx redirects client-side
				w.Header().Set("HX-Redirect", "/signin")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/signin", http.StatusSeeOther)
			return
		}

		ctx, cancel := context.WithTimeout(sess.Context(r.Context()), handlerTimeout)
		defer cancel()
		next(w, r.WithContext(ctx), sess)
	}
}

// public wraps the signin/signup handlers with rate limiting only.
func (s *Server) public(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// InvalidateHistory drops the user's cached history aggregate. Called
// when an expense is written outside a request, such as a subscription
// charge.
func (s *Server) InvalidateHistory(userID string) {
	s.historyCache.Delete(userID)
}

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a template, logging failures. Handlers that already
// wrote headers pass the writer straight through.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", "template", name, applog.FieldError, err)
	}
}
