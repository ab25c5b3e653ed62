package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/griddash/griddash/pkg/log"
)

// loginState is the OAuth state parameter: it carries the pending session,
// its one-time code and where to send the browser after login.
type loginState struct {
	Session   string `json:"session"`
	StateCode string `json:"state_code"`
	Context   string `json:"context"`
}

// handleLogin starts the Google code flow. A fresh pending session and
// one-time state code are minted so /code can tie the callback back to this
// browser.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeJSONError(w, "auth not configured", http.StatusNotFound)
		return
	}

	redirectTo := r.URL.Query().Get("context")
	if redirectTo == "" || redirectTo[0] != '/' {
		redirectTo = "/"
	}

	session := uuid.NewString()
	stateCode := uuid.NewString()

	state, err := json.Marshal(loginState{
		Session:   session,
		StateCode: stateCode,
		Context:   redirectTo,
	})
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to marshal login state", slog.Any("error", err))
		writeJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	s.sessions.create(session, stateCode)
	http.Redirect(w, r, s.oauth.AuthCodeURL(string(state)), http.StatusTemporaryRedirect)
}

// handleCode completes the code flow: it validates the state against the
// pending session, trades the code for tokens, verifies the ID token and only
// then marks the session authenticated. Every failure path ends at the
// unauthorized page rather than leaking details to the browser.
func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.oauth == nil {
		writeJSONError(w, "auth not configured", http.StatusNotFound)
		return
	}

	unauthorized := func() {
		http.Redirect(w, r, "/unauthorized.html", http.StatusSeeOther)
	}

	var state loginState
	if err := json.Unmarshal([]byte(r.URL.Query().Get("state")), &state); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid oauth state", slog.Any("error", err))
		unauthorized()
		return
	}
	if !s.sessions.matchState(state.Session, state.StateCode) {
		log.Ctx(ctx).WarnContext(ctx, "oauth state mismatch")
		unauthorized()
		return
	}

	token, err := s.oauth.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "code exchange failed", slog.Any("error", err))
		unauthorized()
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		log.Ctx(ctx).ErrorContext(ctx, "token response missing id_token")
		unauthorized()
		return
	}
	idToken, err := s.verify(ctx, rawIDToken)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "id token verification failed", slog.Any("error", err))
		unauthorized()
		return
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to parse id token claims", slog.Any("error", err))
		unauthorized()
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "login attempt", slog.String("email", claims.Email))
	if !s.isAllowedEmail(claims.Email) {
		unauthorized()
		return
	}

	s.sessions.authenticate(state.Session, claims.Email, token.Expiry)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    state.Session,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	redirectTo := state.Context
	if u, err := url.Parse(redirectTo); err != nil || u.IsAbs() || redirectTo == "" || redirectTo[0] != '/' {
		redirectTo = "/"
	}
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

func (s *Server) isAllowedEmail(email string) bool {
	if email == "" {
		return false
	}
	for _, allowed := range s.allowedEmails {
		if email == allowed {
			return true
		}
	}
	return false
}
