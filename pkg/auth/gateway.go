// Package auth is the single place connections and requests are
// authenticated. Tokens are HMAC-signed bearer JWTs carrying the user id as
// subject; the gateway resolves them against the persistence port and
// rejects inactive users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"collabd/pkg/logger"
	"collabd/pkg/models"
)

// ErrUnauthenticated covers missing, invalid and expired tokens as well as
// inactive users. WebSocket handshakes failing with it close with 4403.
var ErrUnauthenticated = errors.New("unauthenticated")

// UserResolver is the slice of the persistence port the gateway needs.
type UserResolver interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
}

type Gateway struct {
	secret []byte
	users  UserResolver
	ttl    time.Duration
}

func New(secret string, users UserResolver, ttl time.Duration) *Gateway {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gateway{secret: []byte(secret), users: users, ttl: ttl}
}

// TokenForUser issues a signed token for the given user id. The surrounding
// platform normally issues tokens; this is used by tests and dev tooling.
func (g *Gateway) TokenForUser(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Resolve validates a raw token string and returns the active user it
// identifies.
func (g *Gateway) Resolve(ctx context.Context, tokenStr string) (models.User, error) {
	if tokenStr == "" {
		return models.User{}, ErrUnauthenticated
	}
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		logger.Warn("token_rejected", "error", err)
		return models.User{}, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}
	u, err := g.users.GetUser(ctx, id)
	if err != nil {
		logger.Warn("token_subject_unknown", "user", id)
		return models.User{}, ErrUnauthenticated
	}
	if !u.IsActive {
		logger.Warn("inactive_user_rejected", "user", id)
		return models.User{}, ErrUnauthenticated
	}
	return u, nil
}

// Authenticate reads the token from the request's `token` query key (the
// WebSocket handshake form) and resolves it.
func (g *Gateway) Authenticate(r *http.Request) (models.User, error) {
	return g.Resolve(r.Context(), r.URL.Query().Get("token"))
}

// FromBearer resolves an Authorization: Bearer header (the REST form).
func (g *Gateway) FromBearer(r *http.Request) (models.User, error) {
	h := r.Header.Get("Authorization")
	tokenStr := strings.TrimPrefix(h, "Bearer ")
	if tokenStr == h {
		return models.User{}, ErrUnauthenticated
	}
	return g.Resolve(r.Context(), tokenStr)
}
