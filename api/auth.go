package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// CURRENT ACTOR
// =============================================================================

// ActorClaims is the JWT payload issued by the surrounding staff portal.
type ActorClaims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// ActorFrom returns the actor stored by ActorMiddleware, zero if none.
func ActorFrom(ctx context.Context) generic.Actor {
	a, _ := ctx.Value(actorKey{}).(generic.Actor)
	return a
}

func WithActor(ctx context.Context, a generic.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorMiddleware resolves the current actor.
//
// With a secret, a valid "Authorization: Bearer <jwt>" is required on every
// request (401 otherwise). Without a secret (development), the actor is read
// from the X-Actor-ID / X-Actor-Name / X-Actor-Role headers; requests without
// them proceed anonymously and writes fail with generic.ErrActorRequired.
func ActorMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				actor := generic.Actor{
					ID:   r.Header.Get("X-Actor-ID"),
					Name: r.Header.Get("X-Actor-Name"),
					Role: r.Header.Get("X-Actor-Role"),
				}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
				return
			}

			tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			claims, err := ParseActorToken(secret, tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}
			actor := generic.Actor{ID: claims.UserID, Name: claims.Name, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ParseActorToken validates an HS256 token and returns its claims.
func ParseActorToken(secret, tokenStr string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ActorClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no userId")
	}
	return claims, nil
}

// IssueActorToken signs a token for actor. Used by tests and local tooling.
func IssueActorToken(secret string, actor generic.Actor, ttl time.Duration) (string, error) {
	claims := ActorClaims{
		UserID: actor.ID,
		Name:   actor.Name,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
