package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/internal/session"
	"github.com/lumenbank/apiserver/types"
)

// SessionCookie carries the signed session token.
const SessionCookie = "lumen_session"

var errNotAuthenticated = errors.New("not authenticated")

// AuthHandler provides registration, login and identity resolution.
type AuthHandler struct {
	users        *services.UserService
	sessions     session.Store
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	logger       log.Logger
}

func NewAuthHandler(users *services.UserService, sessions session.Store, cfg config.SessionConfig, logger log.Logger) *AuthHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		secret:       []byte(cfg.JWTSecret),
		ttl:          cfg.TTL,
		secureCookie: cfg.CookieSecure,
		logger:       logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.With(h.RequireAuth).Get("/me", h.Me)
	r.With(h.RequireAuth).Patch("/me", h.UpdateMe)
}

// RequireAuth resolves the caller and stores the user in the request
// context. Unresolvable requests get 401 "Not authenticated".
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.ResolveUser(r.Context(), requestToken(r))
		if err != nil {
			if !errors.Is(err, errNotAuthenticated) {
				h.logger.Log("msg", "resolve session", "err", err)
			}
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// ResolveUser returns the user a session token belongs to. Missing,
// expired, tampered and revoked tokens all yield errNotAuthenticated.
func (h *AuthHandler) ResolveUser(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, errNotAuthenticated
	}
	claims, err := h.parseToken(token)
	if err != nil {
		return types.User{}, errNotAuthenticated
	}

	userID, err := h.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return types.User{}, errNotAuthenticated
		}
		return types.User{}, err
	}
	if userID != claims.Subject {
		return types.User{}, errNotAuthenticated
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return types.User{}, errNotAuthenticated
		}
		return types.User{}, err
	}
	return user, nil
}

type RegisterRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

type AuthResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token,omitempty"`
	User    types.User `json:"user"`
}

// Register creates a user and signs them in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.users.Register(r.Context(), services.Registration{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, err := h.startSession(r.Context(), w, user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Success: true, Token: token, User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, err := h.startSession(r.Context(), w, user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Token: token, User: user})
}

// Logout revokes the caller's session if there is one and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := requestToken(r); token != "" {
		if claims, err := h.parseToken(token); err == nil {
			if err := h.sessions.Delete(r.Context(), claims.ID); err != nil {
				h.logger.Log("msg", "delete session", "err", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: user})
}

// UpdateMe changes the caller's profile fields.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: updated})
}

func (h *AuthHandler) startSession(ctx context.Context, w http.ResponseWriter, userID string) (string, error) {
	sessionID, err := h.sessions.Create(ctx, userID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	expires := now.Add(h.ttl)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(h.secret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (h *AuthHandler) parseToken(token string) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return jwt.RegisteredClaims{}, errors.New("invalid token")
	}
	return claims, nil
}

// requestToken reads the session cookie, falling back to a bearer token.
func requestToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
