// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"spend-insight-go/pkg/log"
	"spend-insight-go/pkg/token"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey 是请求身份在 Gin 上下文中的键。
const ContextUserIDKey = "userID"

// IdentityMiddleware 创建一个 Gin 中间件，用于解析请求身份。
// 请求携带认证协作方签发的 Bearer token 时验证并采用其中的用户标识；
// 未携带时回退到配置的默认身份。身份始终作为显式值写入上下文，
// 由处理器逐层传参，不存在环境全局态。
func IdentityMiddleware(jwtManager *token.JWTManager, defaultUserID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(ContextUserIDKey, defaultUserID)
			c.Next()
			return
		}

		// Token 以 "Bearer <token>" 的形式提供，我们需要提取出 token 本身
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[Identity] token 验证失败: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID 从 Gin 上下文取出请求身份。
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
