package middleware

import (
	"fmt"

	"github.com/GoPolymarket/guardgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware turns a handler panic into a SYSTEM_PANIC response.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic", "path", c.Request.URL.Path, "panic", fmt.Sprint(recovered))
		appErr := apperrors.New(apperrors.ErrSystemPanic, "internal panic", fmt.Errorf("%v", recovered))
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}
