// Package auth verifies bearer tokens issued by the external identity
// provider and threads the authenticated quiz owner through the request
// context. It never issues tokens itself.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/crivus/quizlead/internal/errors"
)

type Config struct {
	// Secret is the HS256 key shared with the identity provider.
	Secret string
}

type Verifier struct {
	secret []byte
}

func NewVerifier(c Config) *Verifier {
	return &Verifier{secret: []byte(c.Secret)}
}

// Claims carries the owner identity in the registered Subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// VerifyToken validates an HS256 bearer token and returns the owner id from
// its subject claim.
func (v *Verifier) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", errors.New(errors.CodeUnauthenticated, errors.WithCause(err))
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("token has no subject"))
	}

	return claims.Subject, nil
}

// RequireOwner is a gin middleware that rejects requests without a valid
// bearer token and stores the owner id in the request context.
func (v *Verifier) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		owner, err := v.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(WithOwner(c.Request.Context(), owner))
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

type ownerKey struct{}

// WithOwner returns a context carrying the authenticated owner id.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom extracts the authenticated owner id set by RequireOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}
