package middles

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const MAX_PRINT_BODY_LEN = 512

type bodyLogWriter struct {
	gin.ResponseWriter
	bodyBuf *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.bodyBuf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Logging logs each request and a truncated copy of the response body.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		logrus.WithField("url", c.Request.URL.Path).
			WithField("form", c.Request.URL.Query()).
			WithField("addr", c.ClientIP()).
			Info("incoming request")

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		if len(body) > 0 {
			logrus.WithField("url", c.Request.URL.Path).Debugf("request body: %s", truncate(string(body)))
		}

		blw := bodyLogWriter{bodyBuf: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw
		c.Next()

		logrus.WithField("url", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			Debugf("outgoing response: %s", truncate(strings.Trim(blw.bodyBuf.String(), "\n")))
	}
}

func truncate(s string) string {
	if len(s) > MAX_PRINT_BODY_LEN {
		return s[:MAX_PRINT_BODY_LEN-1]
	}
	return s
}
