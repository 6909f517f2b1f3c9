package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"
	ContextAuditLog  = "audit_fields"

	maxLoggedBody = 4096
)

// bodyLogWriter tees the response body so it can be logged.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// AuditMiddleware tags each request with an id and writes one structured log
// line per request once it completes. Bodies on offer routes are redacted.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)
		c.Set(ContextRequestID, reqID)

		// Read the body and put it back for binding.
		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}

		fields := make(map[string]any)
		c.Set(ContextAuditLog, fields)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		args := []any{
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if body := redactAuditBody(c.Request.URL.Path, reqBody); body != "" {
			args = append(args, "request_body", body)
		}
		if body := redactAuditBody(c.Request.URL.Path, blw.body.Bytes()); body != "" {
			args = append(args, "response_body", body)
		}
		for k, v := range fields {
			args = append(args, k, v)
		}
		logger.Info("request", args...)
	}
}

// AddAuditContext lets a handler attach business fields to the request's log line.
func AddAuditContext(c *gin.Context, key string, value any) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if fields, ok := val.(map[string]any); ok {
			fields[key] = value
		}
	}
}

func redactAuditBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !isSensitivePath(path) {
		return truncate(string(body))
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return truncate(string(redacted))
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}

func isSensitivePath(path string) bool {
	return strings.HasPrefix(path, "/v1/offers")
}

func redactJSON(body []byte) ([]byte, bool) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *any) {
	switch raw := (*v).(type) {
	case map[string]any:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []any:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "private_key",
		"signature",
		"sig",
		"signer_key":
		return true
	default:
		return false
	}
}
