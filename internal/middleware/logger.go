package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request as one structured line and recovers from
// panics with a generic 500. Panic details never reach the client.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			if recovered := recover(); recovered != nil {
				log.WithFields(requestFields(c, start)).
					WithField("panic", fmt.Sprintf("%v", recovered)).
					WithField("stack", string(debug.Stack())).
					Error("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Something went wrong"},
				})
			}
		}()

		c.Next()

		fields := requestFields(c, start)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.WithFields(fields).Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			log.WithFields(fields).Warn("request rejected")
		default:
			log.WithFields(fields).Info("request")
		}
	}
}

func requestFields(c *gin.Context, start time.Time) logrus.Fields {
	fields := logrus.Fields{
		"method":    c.Request.Method,
		"path":      c.Request.URL.Path,
		"status":    c.Writer.Status(),
		"client_ip": c.ClientIP(),
		"latency":   time.Since(start).String(),
	}
	if id := c.GetString("identity_id"); id != "" {
		fields["identity_id"] = id
	}
	if rid := c.GetHeader("X-Request-ID"); rid != "" {
		fields["request_id"] = rid
	}
	return fields
}
