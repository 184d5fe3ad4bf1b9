package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trade-ledger/internal/app"
	"trade-ledger/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const sessionTTL = time.Hour

type authClaimsKey struct{}

// AuthClaims holds what the JWT asserts about the caller. The customer link is
// not part of it; it is read from the store on every request that needs it.
type AuthClaims struct {
	UserID int
	Role   string
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth is chi middleware that validates the auth_token cookie and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("auth_token")
		if err != nil {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not listed with 403.
// Must run after RequireAuth.
func (h *Handler) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := authFromContext(r.Context())
			if claims == nil {
				writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			h.writeServiceError(w, r, &core.ForbiddenError{Reason: "role " + claims.Role + " may not access this resource"})
		})
	}
}

// identity resolves the caller from the current user record, so a customer
// relinked or unlinked after login is scoped by the link as it is now.
// Writes 401 when the user is gone or the claims are unusable.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (core.Identity, bool) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return core.Identity{}, false
	}
	session, err := h.svc.GetUser(r.Context(), claims.UserID)
	switch {
	case core.IsNotFound(err):
		writeError(w, r, "invalid session", "UNAUTHORIZED", http.StatusUnauthorized)
		return core.Identity{}, false
	case err != nil:
		h.writeServiceError(w, r, err)
		return core.Identity{}, false
	}
	// A role change since login ends the session; the token no longer
	// describes this user.
	if session.Identity.Role == nil || session.Identity.Role.Name() != claims.Role {
		h.log.WithFields(logrus.Fields{
			"event":      "security.stale_session",
			"user_id":    claims.UserID,
			"token_role": claims.Role,
			"request_id": requestIDFromContext(r.Context()),
		}).Warn("session role no longer matches user")
		writeError(w, r, "invalid session", "UNAUTHORIZED", http.StatusUnauthorized)
		return core.Identity{}, false
	}
	return session.Identity, true
}

type sessionResponse struct {
	UserID     int    `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	CustomerID *int   `json:"customer_id,omitempty"`
}

func newSessionResponse(s *app.SessionResult) sessionResponse {
	return sessionResponse{
		UserID:     s.User.ID,
		Username:   s.User.Username,
		Email:      s.User.Email,
		Role:       s.User.Role,
		CustomerID: s.User.CustomerID,
	}
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req app.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.AuthenticateUser(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) || core.IsNotFound(err) {
			h.log.WithFields(logrus.Fields{
				"event":      "security.login_failed",
				"username":   req.Username,
				"request_id": requestIDFromContext(r.Context()),
			}).Warn("login failed")
			writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	now := time.Now()
	claims := &jwtClaims{
		UserID: session.User.ID,
		Role:   session.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	writeJSON(w, newSessionResponse(session))
}

// logout handles POST /api/auth/logout and clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	session, err := h.svc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, newSessionResponse(session))
}
