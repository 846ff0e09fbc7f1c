package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/agrimarket/internal/auth"
	"github.com/safar/agrimarket/internal/models"
)

const actorKey = "actor"

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func actorFromToken(tokens *auth.TokenIssuer, raw string) (*models.User, error) {
	claims, err := tokens.Parse(raw, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Role: claims.Role, IsStaff: claims.Staff}, nil
}

// authMiddleware rejects requests without a valid access token.
func authMiddleware(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		actor, err := actorFromToken(tokens, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// optionalAuthMiddleware attaches the actor when a valid token is present and
// lets anonymous requests through otherwise.
func optionalAuthMiddleware(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if actor, err := actorFromToken(tokens, raw); err == nil {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}

func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		if actor == nil || !(actor.IsStaff || actor.Role == models.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) *models.User {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*models.User)
	return actor
}
