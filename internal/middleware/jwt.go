package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
	"github.com/noah-isme/sns-grievance-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing verified JWT claims.
	ContextUserKey = "currentUser"
	// ContextActorIDKey carries the caller id for access logs.
	ContextActorIDKey = "actor_id"
)

var errMalformedAuthorization = appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")

// TokenValidator verifies bearer tokens minted by the identity service.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT requires a valid bearer token on every request it guards. Citizens and
// staff share the same scheme; role checks are layered on with RequireRoles.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextUserKey, claims)
		c.Set(ContextActorIDKey, claims.UserID)
		c.Next()
	}
}

// CurrentClaims returns the verified claims, or nil on unauthenticated routes.
func CurrentClaims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// CurrentActor is the caller identity handed to services. Anonymous requests
// yield the zero Actor, which services reject as unauthorized.
func CurrentActor(c *gin.Context) models.Actor {
	return models.ActorFromClaims(CurrentClaims(c))
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errMalformedAuthorization
	}
	return token, nil
}
