/*
auth.go - Token issue and verification, role guards

PURPOSE:
  Identifies the caller of every protected endpoint. Login issues an HS256
  JWT carrying the user ID and role; the same token is accepted from the
  "token" cookie or an "Authorization: Bearer" header.

MIDDLEWARE CHAIN:
  Verifier       Parses and validates the token, stores it in the context
  Authenticate   401 when the token is missing, invalid or expired
  RequireRole    403 when the caller's role is not allowed

CLAIMS:
  user_id  Store ID of the user
  role     "admin" or "employee"
  iat/exp  Issue and expiry instants

SEE ALSO:
  - server.go: Applies the chain to route groups
  - attendance/users.go: Login checks the password
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/warp/worktime-engine/worktime"
)

// TokenCookie is the cookie that carries the session token.
const TokenCookie = "token"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   worktime.Role
}

type principalKey struct{}

// Auth issues and verifies tokens.
type Auth struct {
	JWT          *jwtauth.JWTAuth
	TTL          time.Duration
	SecureCookie bool
	now          func() time.Time
}

// NewAuth creates an HS256 token authority.
func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{
		JWT: jwtauth.New("HS256", []byte(secret), nil),
		TTL: ttl,
		now: time.Now,
	}
}

// IssueToken signs a token for the user.
func (a *Auth) IssueToken(user worktime.User) (string, time.Time, error) {
	issued := a.now()
	expires := issued.Add(a.TTL)
	claims := map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	}
	jwtauth.SetIssuedAt(claims, issued)
	jwtauth.SetExpiry(claims, expires)

	_, token, err := a.JWT.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// SetCookie stores the token in the session cookie.
func (a *Auth) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (a *Auth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Verifier finds and validates a token on every request.
func (a *Auth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(a.JWT, jwtauth.TokenFromHeader, tokenFromCookie)
}

func tokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// Authenticate rejects requests without a valid token.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", err)
			return
		}
		userID, _ := claims["user_id"].(string)
		role, _ := claims["role"].(string)
		if userID == "" || role == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, Principal{UserID: userID, Role: worktime.Role(role)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers with one of roles.
func RequireRole(roles ...worktime.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Access denied", nil)
		})
	}
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
