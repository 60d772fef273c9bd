package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/auth"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
)

// DefaultUserID is the identity assigned to anonymous visitors. The
// storefront allows chatting before sign-in; usage limits still apply
// per this shared identity.
const DefaultUserID = "user_default"

// RequireAuth rejects requests without a valid identity-provider token.
func RequireAuth(verifier *auth.Verifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verify(c, verifier)
		if err != nil {
			log.Warn("invalid access token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// OptionalAuth resolves the user identity when a valid token is
// present and falls back to the anonymous identity otherwise. Chat and
// usage endpoints stay reachable before sign-in.
func OptionalAuth(verifier *auth.Verifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verify(c, verifier)
		if err != nil {
			c.Set("user_id", DefaultUserID)
			c.Next()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func verify(c *gin.Context, verifier *auth.Verifier) (*auth.Claims, error) {
	if verifier == nil {
		return nil, auth.ErrNoVerifier
	}
	authHeader := c.GetHeader("Authorization")
	token, err := auth.ExtractTokenFromHeader(authHeader)
	if err != nil {
		return nil, err
	}
	return verifier.Verify(token)
}

// UserID returns the resolved user identity for the request.
func UserID(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return id
	}
	return DefaultUserID
}
