package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/JulianoCristian/iotedge/internal/peercred"
)

const placeholder = "-"

// Logger writes one access line per request to the standard logger
func Logger(label string) gin.HandlerFunc {
	return LoggerWithLogger(label, log.StandardLogger())
}

// LoggerWithLogger writes one access line per request to logger. The
// response is never modified; header values that cannot be determined are
// logged as "-".
func LoggerWithLogger(label string, logger log.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		requestLine := fmt.Sprintf("%s %s %s", r.Method, r.URL.RequestURI(), r.Proto)
		userAgent := orPlaceholder(r.UserAgent())
		pid := placeholder
		if p, ok := peercred.FromContext(r.Context()); ok {
			pid = strconv.Itoa(int(p))
		}

		c.Next()

		status := c.Writer.Status()
		bodyLength := orPlaceholder(c.Writer.Header().Get("Content-Length"))

		logger.Info(fmt.Sprintf("[%s] - - - [%s] \"%s\" %d %s %s \"-\" \"%s\" pid(%s)",
			label,
			time.Now().UTC().Format(time.RFC3339Nano),
			requestLine,
			status,
			http.StatusText(status),
			bodyLength,
			userAgent,
			pid,
		))
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
