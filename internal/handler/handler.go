// internal/handler/handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
	"github.com/ramonsune/custodia-360-sub009/internal/sweep"
)

// Handler exposes the producer, remediation and sweep-trigger contracts over
// HTTP. All real behavior lives in the services; these are thin JSON shims.
type Handler struct {
	Notify     *service.NotifyService
	Compliance *service.ComplianceService
	Accounts   *service.AccountService
	Templates  repository.TemplateRepositoryInterface
	Guard      *sweep.Guard
	Enforcer   *sweep.Enforcer
	Scheduler  *sweep.Scheduler
	Log        *zap.Logger
}

// Routes mounts all endpoints. The enqueue endpoint gets the rate limiter.
func (h *Handler) Routes(limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(limiter).Post("/jobs", h.EnqueueJob)
	r.Get("/jobs/{id}", h.GetJob)

	r.Get("/templates", h.ListTemplates)
	r.Post("/templates", h.CreateTemplate)

	r.Post("/entities/{id}/remediate", h.Remediate)
	r.Post("/entities/{id}/payment-lapsed", h.PaymentLapsed)
	r.Post("/entities/{id}/reactivate", h.Reactivate)

	r.Post("/sweeps/compliance/run", h.runSweep(func(now time.Time) (*sweep.Result, error) { return h.Guard.RunOnce(now) }))
	r.Post("/sweeps/grace/run", h.runSweep(func(now time.Time) (*sweep.Result, error) { return h.Enforcer.RunOnce(now) }))
	r.Post("/sweeps/reminders/run", h.runSweep(func(now time.Time) (*sweep.Result, error) { return h.Scheduler.RunOnce(now) }))

	return r
}

func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EntityID       *int              `json:"entity_id"`
		TemplateSlug   string            `json:"template_slug"`
		Channel        string            `json:"channel"`
		Recipients     []string          `json:"recipients"`
		Context        map[string]string `json:"context"`
		IdempotencyKey *string           `json:"idempotency_key"`
		ScheduledFor   *time.Time        `json:"scheduled_for"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.Notify.Enqueue(repository.EnqueueSpec{
		EntityID:       body.EntityID,
		TemplateSlug:   body.TemplateSlug,
		Channel:        body.Channel,
		Recipients:     body.Recipients,
		Context:        body.Context,
		IdempotencyKey: body.IdempotencyKey,
		ScheduledFor:   body.ScheduledFor,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, recipients, err := h.Notify.JobStatus(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job":        job,
		"recipients": recipients,
	})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Templates.List()
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": templates})
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slug           string   `json:"slug"`
		SubjectPattern string   `json:"subject_pattern"`
		BodyPattern    string   `json:"body_pattern"`
		Channel        string   `json:"channel"`
		Variables      []string `json:"variables"`
		Active         *bool    `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Slug == "" || body.BodyPattern == "" {
		http.Error(w, "slug and body_pattern are required", http.StatusBadRequest)
		return
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}
	tmpl := &model.MessageTemplate{
		Slug:           body.Slug,
		SubjectPattern: body.SubjectPattern,
		BodyPattern:    body.BodyPattern,
		Channel:        body.Channel,
		Variables:      body.Variables,
		Active:         active,
	}
	if err := h.Templates.Create(tmpl); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tmpl)
}

func (h *Handler) Remediate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	rec, err := h.Compliance.Remediate(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *Handler) PaymentLapsed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	if err := h.Accounts.PaymentLapsed(id, time.Now()); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"account_status": model.AccountGracePeriod})
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	if err := h.Accounts.Reactivate(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"account_status": model.AccountActive})
}

// runSweep triggers one sweep invocation. An optional ?now=RFC3339 overrides
// the clock for ops and testing.
func (h *Handler) runSweep(run func(now time.Time) (*sweep.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if raw := r.URL.Query().Get("now"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "invalid now parameter", http.StatusBadRequest)
				return
			}
			now = parsed
		}
		result, err := run(now)
		if err != nil {
			h.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case appErrors.IsTemplateNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case appErrors.IsState(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
