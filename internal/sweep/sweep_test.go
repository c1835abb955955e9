package sweep

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
)

// Mirrors seed/templates.sql closely enough for the sweeps under test.
func seedSweepTemplates(t *testing.T, store *repository.InMemoryStore) {
	t.Helper()
	templates := []*model.MessageTemplate{
		{
			Slug:           TemplateComplianceBlocked,
			SubjectPattern: "Acceso bloqueado: requisitos LOPIVI pendientes",
			BodyPattern:    "Hola {{nombre}}, pendientes desde {{fecha_limite}}: {{requisitos}}",
			Channel:        model.ChannelEmail,
			Variables:      []string{"nombre", "requisitos", "fecha_limite"},
			Active:         true,
		},
		{
			Slug:           TemplateOnboardingReminder,
			SubjectPattern: "Recordatorio: implantación en curso (día {{dias}})",
			BodyPattern:    "Hola {{nombre}}, han pasado {{dias}} días.",
			Channel:        model.ChannelEmail,
			Variables:      []string{"nombre", "dias"},
			Active:         true,
		},
		{
			Slug:           TemplateBillingReminder,
			SubjectPattern: "Aviso de facturación",
			BodyPattern:    "Hola {{nombre}}, hito de facturación (día {{dias}}).",
			Channel:        model.ChannelEmail,
			Variables:      []string{"nombre", "dias"},
			Active:         true,
		},
		{
			Slug:           TemplateGraceUrgent,
			SubjectPattern: "URGENTE: suspensión en {{dias_restantes}} días",
			BodyPattern:    "Hola {{nombre}}, quedan {{dias_restantes}} días.",
			Channel:        model.ChannelEmail,
			Variables:      []string{"nombre", "dias_restantes"},
			Active:         true,
		},
		{
			Slug:           TemplateSuspended,
			SubjectPattern: "Cuenta suspendida por impago",
			BodyPattern:    "La cuenta de {{nombre}} ha sido suspendida.",
			Channel:        model.ChannelEmail,
			Variables:      []string{"nombre"},
			Active:         true,
		},
	}
	for _, tmpl := range templates {
		require.NoError(t, store.Create(tmpl))
	}
}

func newTestNotify(store *repository.InMemoryStore) *service.NotifyService {
	return &service.NotifyService{
		Jobs:      store,
		Templates: store,
		Log:       zap.NewNop(),
	}
}

// flakyJobs passes enqueues through to the wrapped store until the budget runs
// out, then fails them with a store error. Setting a large budget "heals" it.
type flakyJobs struct {
	repository.JobRepositoryInterface
	budget int
}

func (f *flakyJobs) Enqueue(spec repository.EnqueueSpec) (*model.MessageJob, error) {
	if f.budget <= 0 {
		return nil, appErrors.NewStore("enqueue", errors.New("connection reset"))
	}
	f.budget--
	return f.JobRepositoryInterface.Enqueue(spec)
}

func newFlakyNotify(store *repository.InMemoryStore, budget int) (*service.NotifyService, *flakyJobs) {
	jobs := &flakyJobs{JobRepositoryInterface: store, budget: budget}
	return &service.NotifyService{
		Jobs:      jobs,
		Templates: store,
		Log:       zap.NewNop(),
	}, jobs
}
