package middleware

import (
	"github.com/GoPolymarket/guardgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error attached to the context as an AppError
// body. Structural guardrail errors surface as INVALID_REQUEST. Fill
// rejections never reach here; they are part of a 200 response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		appErr := apperrors.Wrap(c.Errors.Last().Err)

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}
		if reqID := c.GetString(ContextRequestID); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "request failed", fields...)
		} else {
			logger.Warn(appErr.Message, fields...)
		}

		// A handler that already wrote its body keeps it.
		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, appErr)
	}
}
