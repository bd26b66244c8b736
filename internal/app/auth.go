package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// subjectKey is where the middleware stores the authenticated subject.
const subjectKey = "auth_subject"

// AuthMiddleware validates bearer tokens, either JWTs signed with the HMAC
// secret or entries from the static token list. For JWTs the "sub" claim is
// exposed to handlers as the requester identity.
func AuthMiddleware(jwtSecret, staticTokenList string) gin.HandlerFunc {
	staticTokens := strings.Split(strings.TrimSpace(staticTokenList), ",")

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		// JWT path
		if jwtSecret != "" {
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenMalformed
				}
				return []byte(jwtSecret), nil
			}, jwt.WithLeeway(5*time.Second))
			if err == nil {
				if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
					c.Set(subjectKey, sub)
				}
				c.Next()
				return
			}
		}

		// static tokens
		for _, t := range staticTokens {
			if t != "" && tokenStr == strings.TrimSpace(t) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// RequesterID returns the authenticated subject, falling back to the value a
// trusted static-token caller supplies explicitly.
func RequesterID(c *gin.Context, fallback string) string {
	if v, ok := c.Get(subjectKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
