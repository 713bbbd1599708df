package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

type contextKey string

const (
	tokenHeader            = "Authorization"
	tokenPrefix            = "Bearer "
	ClaimsKey   contextKey = "claims"
	SubjectKey  contextKey = "subject"
)

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrBadHeader    = errors.New("invalid authorization header format")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// NewAuthInterceptor creates a ConnectRPC interceptor for authentication.
// Procedures listed in public may be called without a token; when one is
// sent anyway it is still validated.
func NewAuthInterceptor(signer *Signer, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			header := req.Header().Get(tokenHeader)
			if header == "" && open[req.Spec().Procedure] {
				return next(ctx, req)
			}

			claims, err := authenticate(signer, header)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}

// Authenticate validates the bearer token of a plain HTTP request.
func Authenticate(signer *Signer, r *http.Request) (*Claims, error) {
	return authenticate(signer, r.Header.Get(tokenHeader))
}

func authenticate(signer *Signer, header string) (*Claims, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(header, tokenPrefix) {
		return nil, ErrBadHeader
	}

	claims, err := signer.ValidateToken(strings.TrimPrefix(header, tokenPrefix))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// WithClaims stores validated claims in the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, SubjectKey, claims.Subject)
}

// GetClaims retrieves the full claims from the context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(SubjectKey).(string)
	return sub, ok && sub != ""
}
