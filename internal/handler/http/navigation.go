package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/shopease/internal/gate"
	"github.com/utafrali/shopease/internal/service"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	"github.com/utafrali/shopease/pkg/httputil"
)

// NavigationHandler lets the view layer ask the access gate about a view
// before rendering it.
type NavigationHandler struct {
	resolver *service.SessionResolver
	logger   *slog.Logger
}

// NewNavigationHandler creates a new navigation HTTP handler.
func NewNavigationHandler(resolver *service.SessionResolver, logger *slog.Logger) *NavigationHandler {
	return &NavigationHandler{resolver: resolver, logger: logger}
}

// NavigationResponse is the gate's verdict for one view.
type NavigationResponse struct {
	Path   string `json:"path"`
	Access string `json:"access"`
	gate.Decision
}

// Navigate handles GET /api/v1/navigation?path=/checkout
func (h *NavigationHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" || !strings.HasPrefix(path, "/") {
		httputil.WriteError(w, r, apperrors.InvalidInput("path must be an absolute view path"), h.logger)
		return
	}

	decision, _ := h.resolver.Navigate(r.Context(), sessionIDFromContext(r.Context()), path)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: NavigationResponse{
		Path:     path,
		Access:   gate.Classify(path).String(),
		Decision: decision,
	}})
}
