package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"golang.org/x/crypto/bcrypt"

	"github.com/VYBRANDMEDIA/nannygo/internal/auth"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

// AuthHandler is the identity provider: it owns users and issues tokens.
type AuthHandler struct {
	users   repository.UserRepo
	tokens  *auth.TokenManager
	revoked auth.Revocations
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(users repository.UserRepo, tokens *auth.TokenManager, revoked auth.Revocations) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, revoked: revoked}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      models.Identity `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, w, "signup", 0, &req); err != nil {
		writeError(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !govalidator.IsEmail(email) {
		writeErrorCode(w, domainerr.CodeInvalidInput, "invalid email address")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	u := models.User{Email: email, PasswordHash: string(hash)}
	id, err := h.users.CreateUser(ctx, &u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeErrorCode(w, domainerr.CodeConflict, "email is already registered")
			return
		}
		logger.ErrorContext(ctx, "create user", slog.Any("err", err))
		writeErrorCode(w, domainerr.CodeUnavailable, "datastore unavailable")
		return
	}

	h.issue(w, r, http.StatusCreated, models.Identity{ID: id, Email: email})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, w, "signin", 0, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	u, err := h.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		logger.ErrorContext(ctx, "lookup user", slog.Any("err", err))
		writeErrorCode(w, domainerr.CodeUnavailable, "datastore unavailable")
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeErrorCode(w, domainerr.CodeUnauthorized, "invalid credentials")
		return
	}

	h.issue(w, r, http.StatusOK, models.Identity{ID: u.ID, Email: u.Email})
}

// Signout revokes the presented token until it would have expired anyway.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeErrorCode(w, domainerr.CodeUnauthorized, "not authenticated")
		return
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 && h.revoked != nil {
		if err := h.revoked.Revoke(r.Context(), claims.ID, ttl); err != nil {
			logger.ErrorContext(r.Context(), "revoke token", slog.Any("err", err))
			writeErrorCode(w, domainerr.CodeUnavailable, "token store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, id models.Identity) {
	token, claims, err := h.tokens.Issue(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: id})
}
