package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pulsefit/pulsefit/internal/platform/httpx"
)

// Enqueuer schedules billing sweeps out of band.
type Enqueuer interface {
	EnqueueTrialSweep(ctx context.Context) error
	EnqueueGraceSweep(ctx context.Context) error
}

// Handler exposes lifecycle events and sweep triggers. The router mounts it
// behind the platform gate; payment provider callbacks arrive through the
// platform integration layer, never from tenant traffic.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	enqueuer  Enqueuer
	validator *validator.Validate
}

// NewHandler constructs a Handler. enqueuer may be nil, in which case the
// sweep routes respond 503.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		enqueuer:  enqueuer,
		validator: validator.New(),
	}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/events", h.applyEvent)
	r.Post("/sweeps/trials", h.sweep(func(ctx context.Context) error { return h.enqueuer.EnqueueTrialSweep(ctx) }))
	r.Post("/sweeps/grace", h.sweep(func(ctx context.Context) error { return h.enqueuer.EnqueueGraceSweep(ctx) }))
}

type eventRequest struct {
	GymID uuid.UUID `json:"gym_id" validate:"required"`
	Event Event     `json:"event" validate:"required"`
}

func (h *Handler) applyEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid event payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "gym_id and event are required")
		return
	}

	status, err := h.service.Apply(r.Context(), req.GymID, req.Event)
	if err != nil {
		var invalid *InvalidTransitionError
		switch {
		case errors.As(err, &invalid):
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", invalid.Error())
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "gym not found")
		case errors.Is(err, ErrStaleStatus):
			httpx.Problem(w, http.StatusConflict, "Conflict", "subscription changed concurrently, retry the event")
		default:
			h.logger.Error("apply billing event", slog.String("gym", req.GymID.String()), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"gym_id": req.GymID, "status": status})
}

func (h *Handler) sweep(enqueue func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.enqueuer == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue not configured")
			return
		}
		if err := enqueue(r.Context()); err != nil {
			h.logger.Error("enqueue sweep", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"enqueued": true})
	}
}
