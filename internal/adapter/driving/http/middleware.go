package httphandler

import (
	"log/slog"
	"net/http"
	"time"
)

// codeCapturingWriter records the status code a command handler wrote so the
// request log can report it. A handler that never calls WriteHeader implies 200.
type codeCapturingWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeCapturingWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware emits one slog line per request after the command
// handler has answered.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		cw := &codeCapturingWriter{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(cw, r)

		logger.Info("command request",
			"method", r.Method,
			"path", r.URL.Path,
			"caller", r.Header.Get("X-Caller"),
			"status", cw.code,
			"elapsed", time.Since(began).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware converts a handler panic into a 500 notice. A single
// bad command must not take the relay down with it.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			logger.Error("command handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", v,
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
