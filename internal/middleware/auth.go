package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// JWTAuth JWT authentication middleware; stores the domain.Actor in the context
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing authorization header", common.ErrUnauthorized)
			c.Abort()
			return
		}

		// 2. Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format", common.ErrUnauthorized)
			c.Abort()
			return
		}

		// 3. Verify token
		claims, err := jwtManager.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, http.StatusUnauthorized, "Token expired", err)
			} else {
				common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token", err)
			}
			c.Abort()
			return
		}

		// 4. Store actor in context
		userID := claims.UserID
		SetActor(c, domain.Actor{ID: &userID, Name: claims.Name, Roles: claims.Roles})

		c.Next()
	}
}

// RequireRole aborts with 403 unless the actor holds one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || !actor.HasAnyRole(roles) {
			common.ErrorResponse(c, http.StatusForbidden, "권한이 없습니다", common.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetActor stores the acting user in the gin context
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

// GetActor extracts the acting user from context
func GetActor(c *gin.Context) (domain.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// GetUserID returns the acting user id as a string, empty when anonymous
func GetUserID(c *gin.Context) string {
	actor, ok := GetActor(c)
	if !ok || actor.ID == nil {
		return ""
	}
	return strconv.FormatUint(*actor.ID, 10)
}
