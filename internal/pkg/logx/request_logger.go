package logx

import (
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// anonymizeIP zeroes the host part of a client address before it is logged.
// IPv4 keeps the first three octets, IPv6 the first eight bytes.
func anonymizeIP(ipStr string) string {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "unknown_ip"
	}
	if ip.IsLoopback() {
		return "127.0.0.1"
	}
	if v4 := ip.To4(); v4 != nil {
		masked := append(net.IP(nil), v4...)
		masked[3] = 0
		return masked.String()
	}
	if v6 := ip.To16(); v6 != nil {
		masked := make(net.IP, net.IPv6len)
		copy(masked, v6[:8])
		return masked.String()
	}
	return ipStr
}

// RequestLogger logs one line per request and stores a request-scoped
// logger in the request context (zerolog.Ctx).
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := base.With().
			Str("component", "http").
			Str("remote_ip", anonymizeIP(c.Request.RemoteAddr)).
			Str("request_method", c.Request.Method).
			Str("request_uri", c.Request.RequestURI).
			Logger()

		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event.
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}
