package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// and every subscription stream. It logs the procedure name, participant ID,
// duration, and any error codes/messages.
func LoggingInterceptor() connect.Interceptor {
	return loggingInterceptor{}
}

type loggingInterceptor struct{}

func (loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logRPC(ctx, "RPC", req.Spec().Procedure, start, err)
		return resp, err
	}
}

func (loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		procedure := conn.Spec().Procedure
		slog.Info("Stream opened",
			"procedure", procedure,
			"participant_id", GetParticipantID(ctx),
		)
		err := next(ctx, conn)
		logRPC(ctx, "Stream", procedure, start, err)
		return err
	}
}

func logRPC(ctx context.Context, kind, procedure string, start time.Time, err error) {
	participantID := GetParticipantID(ctx) // empty if no token
	duration := time.Since(start).Milliseconds()

	if err == nil {
		slog.Info(kind+" ok",
			"procedure", procedure,
			"participant_id", participantID,
			"duration_ms", duration,
		)
		return
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal && connectErr.Code() != connect.CodeUnknown {
		slog.Warn(kind+" error",
			"procedure", procedure,
			"code", connectErr.Code(),
			"error", connectErr.Message(),
			"participant_id", participantID,
			"duration_ms", duration,
		)
		return
	}
	slog.Error(kind+" error",
		"procedure", procedure,
		"error", err,
		"participant_id", participantID,
		"duration_ms", duration,
	)
}

// RequestLogger logs plain HTTP requests.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
