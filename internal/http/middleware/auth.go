package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/go-online-store/internal/errors"
	"github.com/pribylovaa/go-online-store/internal/models"
)

// Authenticator проверяет access-токен и возвращает личность запроса.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, accessToken string) (*models.Identity, error)
}

type identityKey struct{}

// RequireAuth извлекает Bearer-токен из Authorization, проверяет его
// и кладёт Identity в контекст. Если перечислены roles — роль из токена
// обязана входить в список.
//
// Ответы:
//   - нет/битый токен  -> 401 "Please authenticate.";
//   - роль не подходит -> 403 "Forbidden action. Access denied.".
func RequireAuth(a Authenticator, roles ...models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierrors.WriteError(w, r, apierrors.ErrAuthRequired)
				return
			}

			identity, err := a.AuthenticateToken(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, apierrors.ErrAuthRequired)
				return
			}

			if len(roles) > 0 && !roleAllowed(identity.Role, roles) {
				apierrors.WriteError(w, r, apierrors.ErrForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom возвращает личность запроса из контекста.
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*models.Identity)
	return identity, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) <= len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

func roleAllowed(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}

	return false
}
