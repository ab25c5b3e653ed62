// Package server exposes the dashboard over HTTP: the JSON data endpoints
// behind a Google login, the OAuth code-flow handlers, health and metrics,
// and the static dashboard files.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/griddash/griddash/pkg/dispatcher"
	"github.com/griddash/griddash/pkg/log"
	"github.com/griddash/griddash/pkg/metrics"
	"github.com/levenlabs/go-lflag"
	"golang.org/x/oauth2"
)

const sessionCookie = "griddash_session"

// tokenVerifier validates a Google ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server handles the HTTP surface for the dashboard. All data flows through
// the dispatcher's command channel; the server itself only owns sessions.
type Server struct {
	comms    *dispatcher.Comms
	recorder *metrics.Recorder
	sessions *sessionStore

	listenAddr string
	staticDir  string
	serverName string
	httpServer *http.Server

	allowedEmails []string
	oauth         *oauth2.Config
	verify        tokenVerifier
	bypassAuth    bool
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(comms *dispatcher.Comms, rec *metrics.Recorder) *Server {
	srv := &Server{
		comms:      comms,
		recorder:   rec,
		sessions:   newSessionStore(),
		serverName: "griddash",
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	staticDir := lflag.String("static-dir", "static", "Directory with the dashboard static files")
	clientID := lflag.String("google-client-id", "", "Google OAuth client ID (empty disables auth)")
	clientSecret := lflag.String("google-client-secret", "", "Google OAuth client secret")
	redirectURL := lflag.String("google-redirect-url", "", "OAuth redirect URL, must end in /code")
	allowedEmails := lflag.String("allowed-emails", "", "comma-delimited list of emails allowed to view the dashboard")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.staticDir = *staticDir
		if *allowedEmails != "" {
			srv.allowedEmails = strings.Split(*allowedEmails, ",")
			for i, email := range srv.allowedEmails {
				srv.allowedEmails[i] = strings.TrimSpace(email)
			}
		}

		if *clientID == "" {
			srv.bypassAuth = true
			return
		}
		provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
		if err != nil {
			log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
			os.Exit(1)
		}
		srv.verify = provider.Verifier(&oidc.Config{ClientID: *clientID}).Verify
		srv.oauth = &oauth2.Config{
			ClientID:     *clientID,
			ClientSecret: *clientSecret,
			RedirectURL:  *redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email"},
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/{kind}", s.handleData)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /code", s.handleCode)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.recorder.Handler())
	mux.HandleFunc("GET /full", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, s.staticDir+"/index_full.html")
	})
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))

	return s.serverNameMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(s.noCacheMiddleware(mux))))
}

// Run starts the HTTP server and the session purge job, blocking until the
// context is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go s.sessions.runPurge(ctx)

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// handleData answers the dashboard data endpoints. An unauthenticated client
// gets a 200 with an X-Redirect-Location header instead of a 3xx because the
// dashboard fetches via XHR and follows the header itself.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	var cmd dispatcher.Command
	var redirect string
	switch r.PathValue("kind") {
	case "small":
		cmd = dispatcher.CmdSmallDashData
		redirect = "/login?context=/"
	case "full":
		cmd = dispatcher.CmdFullDashData
		redirect = "/login?context=/full"
	default:
		writeJSONError(w, "unknown dashboard type", http.StatusBadRequest)
		return
	}

	if !s.authenticated(r) {
		w.Header().Set("X-Redirect-Location", redirect)
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"message": "redirect"}`)); err != nil {
			panic(http.ErrAbortHandler)
		}
		return
	}

	payload, err := s.comms.Exchange(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, dispatcher.ErrClosed) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "command exchange failed",
			slog.String("command", cmd.String()), slog.Any("error", err))
		writeJSONError(w, "dashboard data unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(payload)); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) authenticated(r *http.Request) bool {
	if s.bypassAuth {
		return true
	}
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return s.sessions.authenticated(cookie.Value)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Strict-Transport-Security: max-age=2 years
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// noCacheMiddleware keeps clients from caching data or dashboard files; the
// charts must always reflect the freshest poll.
func (s *Server) noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serverNameMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}
