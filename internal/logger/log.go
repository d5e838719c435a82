package logger

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Cap per-record body capture so one large payload cannot flood the log.
	sizeLimit = 240 * 1024
)

// sensitiveHeaders are never logged verbatim.
var sensitiveHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// logRecord for request logs on the HTTP transports
type logRecord struct {
	RequestID      string
	Timestamp      int64
	Duration       int64
	HTTPStatusCode int
	ErrorStack     string
	HTTPMethod     string
	RequestPath    string
	RequestQuery   string
	RequestBody    string
	ResponseBody   string
	Headers        map[string]string
}

// GinLogMiddleware logs one record per HTTP request using the global zap
// logger. Event-stream responses are not buffered; only their status is
// recorded.
func GinLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var record *logRecord
		// overwrite the gin.Context.Writer to log response body
		respWriter := &respLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = respWriter

		defer func() {
			truncate(record)
			GetLogger().Info("http request",
				zap.String("request_id", record.RequestID),
				zap.String("method", record.HTTPMethod),
				zap.String("path", record.RequestPath),
				zap.String("query", record.RequestQuery),
				zap.Int("status", record.HTTPStatusCode),
				zap.Int64("duration_ms", record.Duration),
				zap.String("request_body", record.RequestBody),
				zap.String("response_body", record.ResponseBody),
				zap.Any("headers", record.Headers),
				zap.String("error_stack", record.ErrorStack),
			)
		}()

		defer func() {
			if r := recover(); r != nil {
				record.HTTPStatusCode = http.StatusInternalServerError
				record.ErrorStack = string(debug.Stack())
				// throw the panic to the later middlewares
				panic(r)
			}
		}()

		record = initLogRecord(c)

		c.Next()

		record.HTTPStatusCode = c.Writer.Status()
		record.Duration = time.Now().UnixNano()/1e6 - record.Timestamp
		if streaming(c.Writer.Header().Get("Content-Type")) {
			record.ResponseBody = "(event stream)"
		} else {
			record.ResponseBody = respWriter.body.String()
		}
	}
}

func streaming(contentType string) bool {
	return strings.HasPrefix(contentType, "text/event-stream")
}

func truncate(record *logRecord) {
	if len(record.RequestBody) > sizeLimit {
		record.RequestBody = record.RequestBody[:sizeLimit] + "...TRUNCATED"
	}
	if len(record.ResponseBody) > sizeLimit {
		record.ResponseBody = record.ResponseBody[:sizeLimit] + "...TRUNCATED"
	}
	if len(record.ErrorStack) > sizeLimit {
		record.ErrorStack = record.ErrorStack[:sizeLimit] + "...TRUNCATED"
	}
}

type respLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w respLogWriter) Write(b []byte) (int, error) {
	if !streaming(w.Header().Get("Content-Type")) {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w respLogWriter) WriteString(s string) (int, error) {
	if !streaming(w.Header().Get("Content-Type")) {
		w.body.WriteString(s)
	}
	return w.ResponseWriter.WriteString(s)
}

func initLogRecord(ctx *gin.Context) *logRecord {
	var requestBody string
	if ctx.Request.Body != nil {
		requestBodyBytes, err := io.ReadAll(ctx.Request.Body)
		if err == nil {
			// reattach request body for later use
			ctx.Request.Body = io.NopCloser(bytes.NewBuffer(requestBodyBytes))
			requestBody = string(requestBodyBytes)
		}
	}

	headers := make(map[string]string, len(ctx.Request.Header))
	for name, values := range ctx.Request.Header {
		if sensitiveHeaders[name] {
			headers[name] = "***"
			continue
		}
		headers[name] = strings.Join(values, ", ")
	}

	return &logRecord{
		RequestID:    uuid.NewString(),
		Timestamp:    time.Now().UnixNano() / 1e6,
		HTTPMethod:   ctx.Request.Method,
		RequestPath:  ctx.Request.URL.Path,
		RequestQuery: ctx.Request.URL.Query().Encode(),
		RequestBody:  requestBody,
		Headers:      headers,
	}
}
