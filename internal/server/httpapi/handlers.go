package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	api "github.com/avolkov/taskdeck/internal/models"
	"github.com/avolkov/taskdeck/internal/server/repositories/users"
	"github.com/avolkov/taskdeck/internal/server/services"
)

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, users.ErrEmailExists) {
			writeDetail(w, http.StatusUnprocessableEntity, "Email already registered")
			return
		}
		s.logger.Error(r.Context(), "register failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, user.ToAPI())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, token, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, api.LoginResponse{Token: *token, User: user.ToAPI()})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	user, err := s.auth.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		s.logger.Error(r.Context(), "get current user failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !user.IsActive {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}

	writeJSON(w, http.StatusOK, user.ToAPI())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	token, err := s.auth.Refresh(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) || errors.Is(err, services.ErrInvalidCredentials) {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		s.logger.Error(r.Context(), "token refresh failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req api.PasswordChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 8 {
		writeDetail(w, http.StatusUnprocessableEntity, "Password must be at least 8 characters")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), id, req); err != nil {
		switch {
		case errors.Is(err, services.ErrIncorrectPassword):
			writeDetail(w, http.StatusBadRequest, "Current password is incorrect")
		case errors.Is(err, users.ErrNotFound):
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		default:
			s.logger.Error(r.Context(), "password change failed", "error", err)
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.oauth.Providers(r.Context()))
}

// handleAuthorize starts a provider handshake. Authentication is optional: an
// authenticated caller gets a handshake bound to its account so the same
// state can later be consumed by /oauth/link.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req api.AuthorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var caller *uuid.UUID
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		if id, err := s.tokens.Validate(token); err == nil {
			caller = &id
		}
	}

	resp, err := s.oauth.Authorize(r.Context(), caller, req)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req api.CallbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, token, err := s.oauth.Callback(r.Context(), req)
	if err != nil {
		s.writeOAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.LoginResponse{Token: *token, User: user.ToAPI()})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req api.LinkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.oauth.Link(r.Context(), id, req)
	if err != nil {
		s.writeOAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToAPI())
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req api.UnlinkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.oauth.Unlink(r.Context(), id, req)
	if err != nil {
		s.writeOAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToAPI())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeOAuthError maps the oauth service sentinels onto the wire. The
// messages mirror what password-login clients already display.
func (s *Server) writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidState):
		writeDetail(w, http.StatusBadRequest, "Invalid or expired OAuth state")
	case errors.Is(err, services.ErrAlreadyLinked):
		writeDetail(w, http.StatusUnprocessableEntity, "OAuth account already linked to another user")
	case errors.Is(err, services.ErrNotLinked):
		writeDetail(w, http.StatusUnprocessableEntity, "OAuth provider not linked to this account")
	case errors.Is(err, services.ErrUnlinkWithoutPassword):
		writeDetail(w, http.StatusUnprocessableEntity, "Cannot unlink OAuth account without setting a password first")
	case errors.Is(err, services.ErrNoEmail):
		writeDetail(w, http.StatusBadRequest, "OAuth provider did not supply an email address")
	default:
		s.logger.Error(r.Context(), "oauth operation failed", "error", err)
		writeDetail(w, http.StatusBadRequest, err.Error())
	}
}
