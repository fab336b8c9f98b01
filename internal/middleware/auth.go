package middleware

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsKey is the context key for the validated participant claims.
const ClaimsKey contextKey = "claims"

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaims extracts the participant claims from the context.
// Returns nil if the request carried no valid token.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// GetParticipantID extracts the participant ID from the context.
// Returns empty string if not found.
func GetParticipantID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.ParticipantID
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func bearerToken(h http.Header) (string, bool) {
	parts := strings.Split(h.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// claimsFromHeader validates the bearer token if present and adds its
// claims to ctx. Invalid or missing tokens leave ctx unchanged.
func claimsFromHeader(ctx context.Context, tokens *auth.TokenManager, h http.Header) context.Context {
	token, ok := bearerToken(h)
	if !ok {
		return ctx
	}
	claims, err := tokens.Validate(token)
	if err != nil {
		return ctx
	}
	return WithClaims(ctx, claims)
}

// OptionalAuth returns an interceptor that validates participant tokens if
// present, but allows requests without one. Handlers decide which
// procedures need a token.
func OptionalAuth(tokens *auth.TokenManager) connect.Interceptor {
	return &authInterceptor{tokens: tokens}
}

type authInterceptor struct {
	tokens *auth.TokenManager
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return next(claimsFromHeader(ctx, i.tokens, req.Header()), req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return next(claimsFromHeader(ctx, i.tokens, conn.RequestHeader()), conn)
	}
}

// HTTPOptionalAuth is OptionalAuth for plain HTTP routes.
func HTTPOptionalAuth(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := claimsFromHeader(r.Context(), tokens, r.Header)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
