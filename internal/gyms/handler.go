package gyms

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsefit/pulsefit/internal/authz"
	"github.com/pulsefit/pulsefit/internal/platform/httpx"
	"github.com/pulsefit/pulsefit/internal/shared"
)

// Handler exposes gym listing and selection. Selecting a gym replaces the
// tenant session wholesale; role data cached for the previous gym is never
// reused.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver *authz.Resolver
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, resolver *authz.Resolver) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver}
}

// MountRoutes registers gym routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/select", h.list)
	r.Post("/select", h.selectGym)
}

type gymView struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	PlanID string    `json:"plan_id"`
	Status string    `json:"subscription_status"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	list, err := h.service.ListForUser(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("list gyms", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]gymView, 0, len(list))
	for _, gym := range list {
		views = append(views, gymView{
			ID:     gym.ID,
			Name:   gym.Name,
			PlanID: gym.PlanID,
			Status: string(gym.SubscriptionStatus),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"gyms": views})
}

type selectRequest struct {
	GymID uuid.UUID `json:"gym_id"`
}

func (h *Handler) selectGym(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req selectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.GymID == uuid.Nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "gym_id is required")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	// Drop the previous selection before resolving the new one so a failed
	// switch never leaves the old gym's role data active.
	sess.ClearActiveGym()

	tenantSess, err := h.resolver.Resolve(r.Context(), principal, req.GymID)
	if err != nil {
		if authz.IsNotFound(err) {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		h.logger.Error("switch gym", slog.String("gym", req.GymID.String()), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	sess.SetActiveGym(req.GymID.String())

	httpx.JSON(w, http.StatusOK, map[string]any{
		"gym_id":     tenantSess.GymID,
		"role":       string(tenantSess.Role()),
		"is_trainer": tenantSess.Assignment.IsTrainer,
	})
}

func currentPrincipal(r *http.Request) (authz.Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return authz.Principal{}, false
	}
	id, err := uuid.Parse(sess.User())
	if err != nil {
		return authz.Principal{}, false
	}
	return authz.Principal{ID: id}, true
}
