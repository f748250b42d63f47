package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"school-messenger/internal/auth"
	"school-messenger/internal/directory"
	"school-messenger/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified identity every inbound operation is bound to.
// The messaging core trusts this binding and never re-authenticates.
type Principal struct {
	Ref  models.Ref
	Role string
}

// PrincipalFrom returns the authenticated participant installed by
// Authenticate, or false outside an authenticated request.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithPrincipal binds a verified participant to the context. Used by
// Authenticate and by tests that bypass token validation.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func tokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	// Websocket clients and API consumers send it as a bearer header.
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// Authenticate validates the session token, checks the account still
// resolves in its directory and installs the Principal in the request
// context.
func Authenticate(dir directory.Resolver, key []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(token, key)
			if err != nil {
				log.Printf("[AUTH] Invalid token from %s: %v", r.RemoteAddr, err)
				http.Error(w, "Session expired or invalid", http.StatusUnauthorized)
				return
			}

			roleID, err := dir.RoleID(r.Context(), claims.Role)
			if err != nil {
				if errors.Is(err, models.ErrIdentityNotFound) {
					log.Printf("[AUTH] Token carries unknown role %q", claims.Role)
					http.Error(w, "Unknown role", http.StatusUnauthorized)
					return
				}
				log.Printf("[ERROR] Middleware role lookup failed: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ref := models.Ref{UserID: claims.UserID, RoleID: roleID}

			if _, err := dir.Resolve(r.Context(), ref); err != nil {
				if errors.Is(err, models.ErrIdentityNotFound) {
					log.Printf("[AUTH] Token valid but account no longer exists: %s", ref.Key())
					http.Error(w, "User account not found", http.StatusUnauthorized)
					return
				}
				log.Printf("[ERROR] Middleware directory lookup failed: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{Ref: ref, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
