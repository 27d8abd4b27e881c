package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/gate"
	"github.com/utafrali/shopease/internal/service"
	"github.com/utafrali/shopease/pkg/httputil"
	"github.com/utafrali/shopease/pkg/logger"
	"github.com/utafrali/shopease/pkg/middleware"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	identityKey  contextKey = "identity"
)

// maxSessionIDLength bounds client supplied session ids.
const maxSessionIDLength = 128

// Session reads the storefront session id from the X-Session-ID header. A
// missing or malformed id is replaced by a fresh one. The id in use is always
// echoed back so the client can keep it.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(middleware.SessionHeader))
		if sid == "" || len(sid) > maxSessionIDLength || strings.ContainsAny(sid, " \t\r\n") {
			sid = uuid.New().String()
		}
		w.Header().Set(middleware.SessionHeader, sid)

		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		ctx = logger.WithSessionID(ctx, sid)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("session_id", sid)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFromContext returns the id stored by Session.
func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// identityFromContext returns the identity RequireAccess resolved, if any.
func identityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*domain.Identity)
	return id, ok && id != nil
}

// accessResponse is the error envelope for gated routes. Redirect and From
// tell the client which view to open instead.
type accessResponse struct {
	Error    *httputil.ErrorResponse `json:"error"`
	Redirect string                  `json:"redirect,omitempty"`
	From     string                  `json:"from,omitempty"`
}

// RequireAccess runs the access gate for the view an API route backs. A
// login redirect answers 401 and remembers view for the session, a denied
// admin answers 404 and an undecided state answers 503 with Retry-After.
func RequireAccess(resolver *service.SessionResolver, view string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			decision, id := resolver.Navigate(ctx, sessionIDFromContext(ctx), view)
			requestID := logger.CorrelationIDFromContext(ctx)

			switch {
			case decision.Outcome == gate.OutcomeRender:
				if id != nil {
					ctx = context.WithValue(ctx, identityKey, id)
				}
				next.ServeHTTP(w, r.WithContext(ctx))

			case decision.IsLoginRedirect():
				httputil.WriteJSON(w, http.StatusUnauthorized, accessResponse{
					Error:    &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required", RequestID: requestID},
					Redirect: decision.Location,
					From:     decision.From,
				})

			case decision.Outcome == gate.OutcomeRedirect:
				httputil.WriteJSON(w, http.StatusNotFound, accessResponse{
					Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "resource not found", RequestID: requestID},
				})

			default:
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusServiceUnavailable, accessResponse{
					Error: &httputil.ErrorResponse{
						Code:      "ACCESS_PENDING",
						Message:   "access check is still in progress, please retry",
						Retryable: true,
						RequestID: requestID,
					},
				})
			}
		})
	}
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request bodies at 1MB.
func limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
}
