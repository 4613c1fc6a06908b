package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// Logging returns an after unit that logs completed requests. The log level
// is determined by the status code and duration:
//   - 500+ status codes are logged at Error level
//   - 400-499 status codes are logged at Warn level
//   - Requests taking longer than 1 second are logged at Warn level
//   - All other requests are logged at Debug level
//
// The status comes from the common.StatusRecorder installed by the registrar
// boundary; the duration is measured from the moment the chain started.
// A request halted by an earlier error never reaches this unit; the boundary
// logs those instead.
func Logging(logger *zap.Logger) chain.Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return chain.AfterFunc(func(w http.ResponseWriter, r *http.Request) error {
		status := http.StatusOK
		bytes := int64(0)
		if rec, ok := w.(*common.StatusRecorder); ok {
			status = rec.Status()
			bytes = rec.BytesWritten()
		}

		duration := time.Duration(0)
		if start, ok := mcontext.GetStartTimeFromRequest(r); ok {
			duration = time.Since(start)
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int64("bytes", bytes),
			zap.Duration("duration", duration),
		}
		if id, ok := mcontext.GetRequestIDFromRequest(r); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		if route, ok := mcontext.GetRouteNameFromRequest(r); ok {
			fields = append(fields, zap.String("route", route))
		}
		if ip, ok := mcontext.GetClientIPFromRequest(r); ok {
			fields = append(fields, zap.String("client_ip", ip))
		}

		switch {
		case status >= 500:
			fields = append(fields, zap.String("remote_addr", r.RemoteAddr))
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		case duration > 1*time.Second:
			logger.Warn("Slow request", fields...)
		default:
			// Normal requests at Debug level to avoid log spam.
			logger.Debug("Request", fields...)
		}
		return nil
	})
}
