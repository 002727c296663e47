package auth

import (
	"context"
	"messenger/domain"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"

	// TokenCookie and TokenQuery name the places a browser client can put its token.
	TokenCookie = "token"
	TokenQuery  = "token"
)

// ExtractToken looks for a token in the Authorization header, then the
// cookie, then the query string. It returns "" when there is none.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get(TokenQuery)
}

// WithClaims injects the user identity into ctx for downstream layers.
func WithClaims(ctx context.Context, claims *CustomClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.User())
	return context.WithValue(ctx, UsernameKey, claims.Username)
}

func UserIDFromContext(ctx context.Context) (domain.UserID, bool) {
	userID, ok := ctx.Value(UserIDKey).(domain.UserID)
	return userID, ok && userID != ""
}
