package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger writes one structured access log line per request
func Logger(service string) gin.HandlerFunc {
	log := logrus.WithField("service", service)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"caller":  c.GetString(CallerKey),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.Last().Error())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case len(c.Errors) > 0:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request")
		}
	}
}
