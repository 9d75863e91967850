package pfmiddleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const unknown = "Unknown"

// ClientIP prend la première ip de X-Forwarded-For, puis X-Real-IP, sinon "Unknown"
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	return unknown
}

func UserAgent(c *gin.Context) string {
	if ua := c.Request.UserAgent(); ua != "" {
		return ua
	}
	return unknown
}
