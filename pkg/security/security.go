package security

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy 前端来源白名单，HTTP 跨域与计时 WebSocket 共用
type OriginPolicy struct {
	allowed map[string]bool
	any     bool
}

func NewOriginPolicy(allowedOrigins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			p.any = true
			continue
		}
		p.allowed[strings.ToLower(o)] = true
	}
	return p
}

// Allowed 来源是否在白名单中
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	return p.any || p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
}

// CheckOrigin 供 websocket.Upgrader 使用。没有 Origin 头的非浏览器客户端放行，同源请求放行
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if p.Allowed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// CORS 中间件 仅允许白名单中的Origin，支持Credentials
func CORS(policy *OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if policy.Allowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Secure 安全响应头。答题与账户接口的响应不允许缓存
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}
