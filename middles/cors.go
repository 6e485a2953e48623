package middles

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Cors answers preflight requests. An empty allowed list lets every origin in.
func Cors(allowed []string) gin.HandlerFunc {
	allow := OriginAllowed(allowed)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allow(c.Request) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		// 必须，设置服务器支持的所有跨域请求的方法
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Token")
		// 放行所有OPTIONS方法
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// OriginAllowed builds a websocket CheckOrigin func. Requests without an
// Origin header come from non-browser clients and are let through.
func OriginAllowed(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
