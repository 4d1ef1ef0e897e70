package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"affiliate-service/pkg/common"
)

const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	RoleAdmin       = "admin"
)

// Claims is the access token issued by the main application.
type Claims struct {
	UserID uint   `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var errNoSecret = errors.New("token secret is not configured")

func parseToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, errNoSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserID == 0 && claims.Subject != "" {
		id, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid subject: %w", err)
		}
		claims.UserID = uint(id)
	}
	if claims.UserID == 0 {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse(message, nil, http.StatusUnauthorized))
}

// AuthMiddleware validates the bearer token and stores the caller in the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := parseToken(secret, parts[1])
		if err != nil {
			unauthorized(c, "invalid or expired access token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextUserRole) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, common.NewErrorResponse("admin access required", nil, http.StatusForbidden))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}
