// Package auth issues and verifies the HS256 bearer tokens that identify
// quiz takers.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"adaptive-quiz-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer   = "adaptive-quiz-service"
	DefaultTokenTTL = 8 * time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
}

type Service struct {
	hmac   []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

func NewService(secret, issuer string, ttl time.Duration) *Service {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{hmac: []byte(secret), issuer: issuer, ttl: ttl, clock: time.Now}
}

// Issue signs a token whose subject is userID.
func (s *Service) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.Invalid("userId", "user id is required")
	}
	now := s.clock()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

// Parse verifies tokenStr and returns its claims. Any failure maps to
// domain.ErrInvalidToken.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || c.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	return c, nil
}

type ctxKey struct{}

// WithUserID stores the authenticated user on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// TokenFromRequest reads a bearer token, falling back to the token query
// parameter that browser websocket clients have to use.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token and exposes the
// caller's id through UserID.
func (s *Service) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				onError(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrInvalidToken))
				return
			}
			claims, err := s.Parse(raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}
