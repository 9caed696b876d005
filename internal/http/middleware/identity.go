package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/models"
)

const (
	ActorKey = "actor"
	// DevEmailHeader carries the caller's email when no JWT secret is set.
	DevEmailHeader = "X-User-Email"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity resolves the caller to an active staff actor. With a secret it
// expects an HS256 bearer token whose email (or subject) names the caller;
// without one it trusts DevEmailHeader.
func Identity(resolver *identity.Resolver, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := callerEmail(c.Request, secret)
		if err != nil {
			abortError(c, http.StatusUnauthorized, string(apperr.Unauthorized), err.Error())
			return
		}
		actor, err := resolver.ResolveActor(c.Request.Context(), email)
		if err != nil {
			kind := apperr.KindOf(err)
			abortError(c, apperr.HTTPStatus(kind), string(kind), apperr.Message(err))
			return
		}
		c.Set(ActorKey, actor)
		c.Next()
	}
}

func callerEmail(r *http.Request, secret string) (string, error) {
	if secret == "" {
		return strings.TrimSpace(r.Header.Get(DevEmailHeader)), nil
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.New("missing bearer token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.New("invalid token")
	}
	if claims.Email != "" {
		return claims.Email, nil
	}
	return claims.Subject, nil
}

// ActorFrom returns the actor stored by Identity.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
