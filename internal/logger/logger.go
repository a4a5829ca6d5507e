package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var defaultLogger = logrus.New()
var defaultEntry = logrus.NewEntry(defaultLogger)

func SetLoggerOptions(optionsFunc func(logger *logrus.Logger)) {
	optionsFunc(defaultLogger)
}

// Configure sets the formatter and level for the given environment.
func Configure(env string, debug bool) {
	SetLoggerOptions(func(l *logrus.Logger) {
		if env == "production" {
			l.SetFormatter(&logrus.JSONFormatter{})
		} else {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
		if debug {
			l.SetLevel(logrus.DebugLevel)
		} else {
			l.SetLevel(logrus.InfoLevel)
		}
	})
}

func NewContextWithFields(parent context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(parent, contextKey{}, For(parent).WithFields(fields))
}

func For(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return defaultEntry
	}
	if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
		return entry.WithContext(ctx)
	}
	return defaultEntry.WithContext(ctx)
}

// Middleware installs a request-scoped entry and logs each request when it completes.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := NewContextWithFields(r.Context(), logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		For(ctx).WithFields(logrus.Fields{
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Info("request completed")
	})
}
