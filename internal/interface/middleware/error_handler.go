package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/pkg/apperror"
	"github.com/oksasatya/go-account-service/pkg/response"
)

// ErrorHandler turns the last error attached with c.Error into the error
// envelope. Server-side failures are logged with their cause; clients only
// see the message.
func ErrorHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := apperror.From(c.Errors.Last().Err)
		status := err.Kind.HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"request_id": RequestID(c),
				"path":       c.FullPath(),
				"error":      err.Error(),
			}).Error("request failed")
		}
		response.Error(c, status, err.Message, err.Details)
	}
}

// Recovery converts panics into a 500 envelope.
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"request_id": RequestID(c),
			"panic":      recovered,
		}).Error("panic recovered")
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
	})
}
