// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity. Two modes exist:
//
//   - jwt:    an HS256 bearer token carrying sub, name and role claims.
//   - header: X-User-ID, X-User-Name and X-User-Role are trusted as-is. Meant
//     for local development and tests behind a trusted gateway.
//
// On success the resolved domain.Actor is stored in the Gin context (see
// ActorFrom) together with the plain "userID" key used by the rate limiter,
// the idempotency validator and the access log. Requests without a usable
// identity are rejected with 401 before reaching any handler.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// Identity headers honoured in header mode.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

// Supported authentication modes.
const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

const (
	ctxKeyActor  = "auth.actor"
	ctxKeyUserID = "userID"
)

var (
	errMissingIdentity = errors.New("authentication required")
	errInvalidToken    = errors.New("invalid or expired token")
	errUserIDTooLong   = fmt.Errorf("user id longer than %d characters", domain.MaxIDLen)
)

// Claims is the JWT payload understood by the service.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	Mode   string // jwt (default) or header
	Secret []byte // HS256 key for jwt mode
}

// Authenticate returns a middleware that resolves the acting user and aborts
// with 401 when none can be established.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	resolve := actorFromToken(opts.Secret)
	if strings.EqualFold(opts.Mode, AuthModeHeader) {
		resolve = actorFromHeaders
	}

	return func(c *gin.Context) {
		actor, err := resolve(c)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("authentication rejected")
			Abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		SetActor(c, actor)
		c.Next()
	}
}

// SetActor stores actor in the request context. Exposed for tests and for
// alternative authentication front ends.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(ctxKeyActor, actor)
	c.Set(ctxKeyUserID, actor.UserID)
	if _, ok := c.Get(loggerKey); ok {
		attachLogger(c, LoggerFrom(c).With().
			Str("user_id", actor.UserID).
			Str("role", string(actor.Role)).
			Logger())
	}
}

// ActorFrom returns the actor resolved by Authenticate.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(ctxKeyActor)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok && a.UserID != ""
}

// UserIDFrom returns the authenticated user id, or "" before authentication.
func UserIDFrom(c *gin.Context) string {
	v, _ := c.Get(ctxKeyUserID)
	return asString(v)
}

func actorFromHeaders(c *gin.Context) (domain.Actor, error) {
	uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if uid == "" {
		return domain.Actor{}, errMissingIdentity
	}
	role, err := domain.ParseRole(c.GetHeader(HeaderUserRole))
	if err != nil {
		return domain.Actor{}, err
	}
	return newActor(uid, c.GetHeader(HeaderUserName), role)
}

// newActor bounds identity fields to what the store can hold. An oversized
// id is rejected since it cannot be shortened without changing who it
// names; a display name is cut to domain.MaxUserNameLen characters.
func newActor(uid, name string, role domain.Role) (domain.Actor, error) {
	if utf8.RuneCountInString(uid) > domain.MaxIDLen {
		return domain.Actor{}, errUserIDTooLong
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > domain.MaxUserNameLen {
		name = string([]rune(name)[:domain.MaxUserNameLen])
	}
	return domain.Actor{UserID: uid, UserName: name, Role: role}, nil
}

func actorFromToken(secret []byte) func(*gin.Context) (domain.Actor, error) {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}

	return func(c *gin.Context) (domain.Actor, error) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			return domain.Actor{}, errMissingIdentity
		}
		claims := &Claims{}
		tok, err := jwt.ParseWithClaims(raw, claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tok.Valid {
			return domain.Actor{}, errInvalidToken
		}
		if strings.TrimSpace(claims.Subject) == "" {
			return domain.Actor{}, errInvalidToken
		}
		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			return domain.Actor{}, err
		}
		return newActor(claims.Subject, claims.Name, role)
	}
}

func bearerToken(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// SignToken issues an HS256 token for actor. The service never issues tokens
// in production; this exists for tests and local tooling.
func SignToken(secret []byte, actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: actor.UserName,
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
