package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"gta-grind-tracker/internal/observability"
	"gta-grind-tracker/pkg/apierror"
	"gta-grind-tracker/pkg/response"
)

// Recovery turns a handler panic into an INTERNAL_ERROR envelope. The
// stack is logged with the request ID so the failing call can be traced.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			observability.RecordPanic()
			log.Printf("[Recovery] PANIC %s %s rid=%s: %v\n%s",
				r.Method, r.URL.Path, GetRequestID(r.Context()), rec, debug.Stack())
			response.Error(w, apierror.InternalError("internal server error"))
		}()

		next.ServeHTTP(w, r)
	})
}
