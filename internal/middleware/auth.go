package middleware

import (
	"strings"

	"exam_practice_backend/internal/model"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenValidator 校验令牌签名与会话是否仍有效
type TokenValidator interface {
	Validate(token string) (*util.Claims, error)
}

// extractToken 优先 Authorization 头，WebSocket 连接从 query 取
func extractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := validator.Validate(tokenString)
		if err != nil {
			logger.Log.Debug("Token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextUserKey, claims)
		c.Next()
	}
}

// TryAuthMiddleware 有合法令牌时注入用户，没有也放行
func TryAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if claims, err := validator.Validate(tokenString); err == nil {
				c.Set(util.ContextUserKey, claims)
			}
		}
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			logger.Log.Warn("Role check failed",
				zap.Uint("user_id", user.UserID),
				zap.String("role", string(user.Role)),
				zap.String("path", c.FullPath()),
			)
			util.ForbiddenRedirect(c, util.DashboardPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware 非管理员返回 403 并告知前端跳回仪表盘
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleAdmin)
}
