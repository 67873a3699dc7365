package flags

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pulsefit/pulsefit/internal/platform/httpx"
)

// AdminHandler exposes flag management. The router mounts it behind the
// platform gate; it never appears on tenant-scoped routes.
type AdminHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(logger *slog.Logger, service *Service) *AdminHandler {
	return &AdminHandler{logger: logger, service: service}
}

// MountRoutes registers flag admin routes.
func (h *AdminHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{name}", h.upsert)
}

func (h *AdminHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list flags", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"flags": list})
}

func (h *AdminHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var flag Flag
	if err := httpx.DecodeJSON(r, &flag); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid flag payload")
		return
	}
	flag.Name = chi.URLParam(r, "name")
	stored, err := h.service.Upsert(r.Context(), flag)
	if err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
			return
		}
		h.logger.Error("upsert flag", slog.String("flag", flag.Name), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, stored)
}

// CheckHandler answers per-gym enablement for the selected tenant session.
type CheckHandler struct {
	evaluator *Evaluator
}

// NewCheckHandler constructs a CheckHandler.
func NewCheckHandler(evaluator *Evaluator) *CheckHandler {
	return &CheckHandler{evaluator: evaluator}
}

// Check resolves the flag for the gym id supplied by the guard middleware.
func (h *CheckHandler) Check(gymID func(r *http.Request) uuid.UUID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		id := gymID(r)
		if id == uuid.Nil {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		enabled := h.evaluator.IsEnabled(r.Context(), name, id)
		httpx.JSON(w, http.StatusOK, map[string]any{"flag": name, "enabled": enabled})
	}
}
