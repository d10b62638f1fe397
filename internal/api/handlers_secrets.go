package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/org/secretshare/internal/secret"
	"github.com/rs/zerolog/log"
)

// CreateSecretHandler handles POST /v1/secrets
func (s *Server) CreateSecretHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content          string `json:"content"`
		Password         string `json:"password"`
		ExpiresInMinutes int    `json:"expires_in_minutes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.secrets.CreateSecret(r.Context(), req.Content, req.Password, req.ExpiresInMinutes)
	if err != nil {
		if errors.Is(err, secret.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err, "creating secret")
		return
	}

	tok, err := s.secrets.BuildShareToken(res.ID, res.EncryptionKey)
	if err != nil {
		s.internalError(w, r, err, "building share token")
		return
	}
	secretsCreatedTotal.Inc()

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"id":                 res.ID,
			"token":              tok,
			"share_url":          s.shareURL(tok),
			"expires_at":         res.ExpiresAt.UTC().Format(time.RFC3339),
			"expires_in_minutes": res.ExpiresInMinutes,
			"requires_password":  res.RequiresPassword,
		},
	})
}

// ResolveSecretHandler handles GET /v1/secrets/resolve?d=<token>
func (s *Server) ResolveSecretHandler(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("d")
	if tok == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	res, err := s.secrets.ResolveShareToken(r.Context(), tok)
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) {
			writeError(w, http.StatusNotFound, secret.ErrNotFound.Error())
			return
		}
		s.internalError(w, r, err, "resolving share token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":                res.ID,
			"requires_password": res.RequiresPassword,
			"expires_at":        res.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}

// RevealSecretHandler handles POST /v1/secrets/reveal
func (s *Server) RevealSecretHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	plaintext, err := s.secrets.RevealSecret(r.Context(), req.Token, req.Password, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, secret.ErrPasswordRequired):
			revealFailuresTotal.WithLabelValues("password_required").Inc()
			writeError(w, http.StatusBadRequest, secret.ErrPasswordRequired.Error())
		case errors.Is(err, secret.ErrTooManyAttempts):
			revealFailuresTotal.WithLabelValues("throttled").Inc()
			writeError(w, http.StatusTooManyRequests, secret.ErrTooManyAttempts.Error())
		case errors.Is(err, secret.ErrUnauthorized):
			// Merged with not-found on the wire so a caller cannot probe
			// which case occurred. The metrics label keeps them apart.
			revealFailuresTotal.WithLabelValues("unauthorized").Inc()
			writeError(w, http.StatusNotFound, secret.ErrNotFound.Error())
		case errors.Is(err, secret.ErrNotFound):
			revealFailuresTotal.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, secret.ErrNotFound.Error())
		default:
			revealFailuresTotal.WithLabelValues("internal").Inc()
			s.internalError(w, r, err, "revealing secret")
		}
		return
	}
	secretsConsumedTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"content": plaintext,
		},
	})
}

func (s *Server) shareURL(tok string) string {
	base := s.cfg.BaseURL
	if base == "" {
		return ""
	}
	return base + "/secrets/show?d=" + url.QueryEscape(tok)
}

// internalError hides storage and crypto details from the caller; the full
// error goes to the log keyed by request id.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log.Error().Err(err).Str("request_id", requestIDFromCtx(r.Context())).Msg(msg)
	writeError(w, http.StatusInternalServerError, "internal error")
}
