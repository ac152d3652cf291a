package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	// Context keys. pkg/response reads requestIDKey by value to stamp envelopes.
	requestIDKey = "request_id"
	clientIPKey  = "real_ip"
)

// proxyIPHeaders are consulted in order before X-Forwarded-For.
var proxyIPHeaders = []string{"CF-Connecting-IP", "X-Real-IP"}

// RequestIDMiddleware tags the request with an id and echoes it back. A
// well-formed incoming X-Request-ID is kept so ids survive a proxy hop.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func RequestID(c *gin.Context) string { return c.GetString(requestIDKey) }

// RealIP resolves the client address from CF-Connecting-IP, then X-Real-IP,
// then the left-most X-Forwarded-For entry, then gin's ClientIP.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, resolveClientIP(c))
		c.Next()
	}
}

func resolveClientIP(c *gin.Context) string {
	for _, h := range proxyIPHeaders {
		if ip := parseIP(c.GetHeader(h)); ip != "" {
			return ip
		}
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

func parseIP(s string) string {
	if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
		return ip.String()
	}
	return ""
}

// ClientIP is the address RealIP resolved, or gin's view when RealIP did not run.
func ClientIP(c *gin.Context) string {
	if ip := c.GetString(clientIPKey); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
