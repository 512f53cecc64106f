package middleware

import (
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/security"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ExternalIDKey = "external_id"
	ClaimsKey     = "session_claims"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			response.Abort(c, response.Unauthorized, "Token 缺失或格式错误")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := security.ValidateToken(tokenString)
		if err != nil {
			response.Abort(c, response.Unauthorized, "Token 无效或已过期")
			return
		}

		c.Set(ExternalIDKey, claims.Subject)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// ExternalID 当前会话的外部身份 ID
func ExternalID(c *gin.Context) string {
	return c.GetString(ExternalIDKey)
}

// Claims 当前会话令牌，未经过 AuthMiddleware 时返回 nil
func Claims(c *gin.Context) *security.SessionClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*security.SessionClaims)
	return claims
}
