package middleware

import (
	"net/http"

	"github.com/GoPolymarket/guardgate/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ReadOnlyMiddleware refuses mutating requests while enabled. Offers can still
// be read and streamed. exempt lists route templates that use POST without
// changing state, such as receipt verification.
func ReadOnlyMiddleware(enabled bool, exempt ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(exempt))
	for _, route := range exempt {
		allowed[route] = struct{}{}
	}
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if _, ok := allowed[c.FullPath()]; ok {
			c.Next()
			return
		}
		c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
		c.Abort()
	}
}
