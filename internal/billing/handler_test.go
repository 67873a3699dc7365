package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/pulsefit/internal/billing"
	_ "github.com/pulsefit/pulsefit/testing"
)

type handlerBillingRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*billing.Subscription
}

func (r *handlerBillingRepo) Subscription(ctx context.Context, gymID uuid.UUID) (billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[gymID]
	if !ok {
		return billing.Subscription{}, billing.ErrNotFound
	}
	return *sub, nil
}

func (r *handlerBillingRepo) UpdateStatus(ctx context.Context, gymID uuid.UUID, from, to billing.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[gymID]
	if !ok {
		return billing.ErrNotFound
	}
	if sub.Status != from {
		return billing.ErrStaleStatus
	}
	sub.Status = to
	return nil
}

func (r *handlerBillingRepo) TrialsElapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *handlerBillingRepo) GraceElapsed(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeEnqueuer struct {
	trials int
	graces int
	err    error
}

func (e *fakeEnqueuer) EnqueueTrialSweep(ctx context.Context) error {
	e.trials++
	return e.err
}

func (e *fakeEnqueuer) EnqueueGraceSweep(ctx context.Context) error {
	e.graces++
	return e.err
}

func newBillingRouter(repo billing.Repository, enqueuer billing.Enqueuer) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := billing.NewService(repo, nil, logger, 7)
	handler := billing.NewHandler(logger, service, enqueuer)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestApplyEventEndpoint(t *testing.T) {
	gymID := uuid.New()
	repo := &handlerBillingRepo{subs: map[uuid.UUID]*billing.Subscription{
		gymID: {GymID: gymID, Status: billing.StatusTrial},
	}}
	router := newBillingRouter(repo, &fakeEnqueuer{})

	body := `{"gym_id":"` + gymID.String() + `","event":"charge_succeeded"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Status billing.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, billing.StatusActive, resp.Status)
}

func TestApplyEventInvalidTransition(t *testing.T) {
	gymID := uuid.New()
	repo := &handlerBillingRepo{subs: map[uuid.UUID]*billing.Subscription{
		gymID: {GymID: gymID, Status: billing.StatusCancelled},
	}}
	router := newBillingRouter(repo, &fakeEnqueuer{})

	body := `{"gym_id":"` + gymID.String() + `","event":"charge_succeeded"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, billing.StatusCancelled, repo.subs[gymID].Status)
}

func TestApplyEventUnknownGym(t *testing.T) {
	router := newBillingRouter(&handlerBillingRepo{subs: map[uuid.UUID]*billing.Subscription{}}, &fakeEnqueuer{})

	body := `{"gym_id":"` + uuid.NewString() + `","event":"cancelled"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyEventValidation(t *testing.T) {
	router := newBillingRouter(&handlerBillingRepo{}, &fakeEnqueuer{})

	for _, body := range []string{
		`{}`,
		`{"gym_id":"` + uuid.NewString() + `"}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestSweepEndpoints(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := newBillingRouter(&handlerBillingRepo{}, enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweeps/trials", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweeps/grace", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Equal(t, 1, enqueuer.trials)
	require.Equal(t, 1, enqueuer.graces)
}

func TestSweepEndpointFailure(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	router := newBillingRouter(&handlerBillingRepo{}, enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweeps/trials", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
