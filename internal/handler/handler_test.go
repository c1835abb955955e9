package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
	"github.com/ramonsune/custodia-360-sub009/internal/sweep"
)

func noLimit(next http.Handler) http.Handler { return next }

func newTestServer(t *testing.T) (*httptest.Server, *repository.InMemoryStore) {
	t.Helper()
	store := repository.NewInMemoryStore()
	log := zap.NewNop()
	notify := &service.NotifyService{Jobs: store, Templates: store, Log: log}
	h := &Handler{
		Notify:     notify,
		Compliance: &service.ComplianceService{Compliance: store, Log: log},
		Accounts:   &service.AccountService{Grace: store, Log: log},
		Templates:  store,
		Guard:      &sweep.Guard{Compliance: store, Entities: store, Notify: notify, Log: log},
		Enforcer:   &sweep.Enforcer{Grace: store, Entities: store, Notify: notify, AdminEmail: "admin@example.com", Log: log},
		Scheduler:  &sweep.Scheduler{Entities: store, Notify: notify, Log: log},
		Log:        log,
	}
	srv := httptest.NewServer(h.Routes(noLimit))
	t.Cleanup(srv.Close)
	return srv, store
}

func seedWelcome(t *testing.T, store *repository.InMemoryStore) {
	t.Helper()
	require.NoError(t, store.Create(&model.MessageTemplate{
		Slug:           "welcome",
		SubjectPattern: "Hola {{nombre}}",
		BodyPattern:    "Tu código es {{codigo}}",
		Channel:        model.ChannelEmail,
		Variables:      []string{"nombre", "codigo"},
		Active:         true,
	}))
}

func TestEnqueueJobEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedWelcome(t, store)

	body := `{"template_slug":"welcome","recipients":["ana@example.com"],"context":{"nombre":"Ana","codigo":"1"}}`
	resp, err := http.Post(srv.URL+"/jobs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		JobID  int    `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, model.JobQueued, out.Status)

	statusResp, err := http.Get(srv.URL + "/jobs/" + strconv.Itoa(out.JobID))
	require.NoError(t, err)
	defer statusResp.Body.Close()
	assert.Equal(t, http.StatusOK, statusResp.StatusCode)
}

func TestEnqueueJobValidationError(t *testing.T) {
	srv, store := newTestServer(t)
	seedWelcome(t, store)

	body := `{"template_slug":"welcome","recipients":["ana@example.com"],"context":{"nombre":"Ana"}}`
	resp, err := http.Post(srv.URL+"/jobs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/jobs/9999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAndListTemplates(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"slug":"aviso","subject_pattern":"Aviso","body_pattern":"Hola {{nombre}}","channel":"email","variables":["nombre"]}`
	resp, err := http.Post(srv.URL+"/templates", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	listResp, err := http.Get(srv.URL + "/templates")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var out struct {
		Data []model.MessageTemplate `json:"data"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "aviso", out.Data[0].Slug)
}

func TestRemediateEndpointConflictFreePath(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.Block(1, model.RequirementRiskmap))

	// Still incomplete: remediation is rejected.
	resp, err := http.Post(srv.URL+"/entities/1/remediate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, store.SetRequirements(1, true, true, true, true))
	resp, err = http.Post(srv.URL+"/entities/1/remediate", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec model.ComplianceRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.False(t, rec.Blocked)
}

func TestPaymentLifecycleEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.UpsertTimer(&model.GraceTimer{
		EntityID:      1,
		AccountStatus: model.AccountActive,
	}))

	resp, err := http.Post(srv.URL+"/entities/1/payment-lapsed", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Not suspended yet, reactivation is a client error.
	resp, err = http.Post(srv.URL+"/entities/1/reactivate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, store.Suspend(1))
	resp, err = http.Post(srv.URL+"/entities/1/reactivate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSweepEndpointWithNowOverride(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.Create(&model.MessageTemplate{
		Slug:           sweep.TemplateOnboardingReminder,
		SubjectPattern: "Recordatorio (día {{dias}})",
		BodyPattern:    "Hola {{nombre}}, día {{dias}}.",
		Channel:        model.ChannelEmail,
		Variables:      []string{"nombre", "dias"},
		Active:         true,
	}))
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store.AddEntity(&model.Entity{
		ID:                1,
		Name:              "Club Oeste",
		ContractorEmail:   "oeste@example.com",
		ContractStartDate: start,
	})

	now := start.AddDate(0, 0, 7).Format(time.RFC3339)
	resp, err := http.Post(srv.URL+"/sweeps/reminders/run?now="+now, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result sweep.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Len(t, result.Actions, 1)
	assert.Len(t, store.AllJobs(), 1)
}

func TestSweepEndpointRejectsBadNow(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/sweeps/compliance/run?now=yesterday", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
