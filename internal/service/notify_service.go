// internal/service/notify_service.go
package service

import (
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
)

// Nudger wakes the dispatcher after an enqueue. Best effort: a lost nudge just
// waits for the next poll tick.
type Nudger interface {
	PublishJob(jobID int) error
}

// NotifyService is the producer contract: validate an enqueue spec against the
// template's declared variables, insert the job, nudge the dispatcher.
type NotifyService struct {
	Jobs      repository.JobRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Nudge     Nudger
	Log       *zap.Logger
}

// Enqueue validates and inserts a job. Validation failures reject the spec
// synchronously; nothing is created. Duplicate idempotency keys return the
// existing job.
func (s *NotifyService) Enqueue(spec repository.EnqueueSpec) (*model.MessageJob, error) {
	if len(spec.Recipients) == 0 {
		return nil, appErrors.NewValidation("job requires at least one recipient")
	}
	for _, to := range spec.Recipients {
		if strings.TrimSpace(to) == "" {
			return nil, appErrors.NewValidation("empty recipient address")
		}
	}

	tmpl, err := s.Templates.GetBySlug(spec.TemplateSlug)
	if err != nil {
		if appErrors.IsTemplateNotFound(err) {
			return nil, appErrors.NewValidation("unknown template %q", spec.TemplateSlug)
		}
		return nil, err
	}
	if !tmpl.Active {
		return nil, appErrors.NewValidation("template %q is inactive", spec.TemplateSlug)
	}

	if spec.Channel == "" {
		spec.Channel = tmpl.Channel
	} else if spec.Channel != tmpl.Channel {
		return nil, appErrors.NewValidation("channel %q does not match template channel %q", spec.Channel, tmpl.Channel)
	}

	// Declared template variables must all be present in the context, so the
	// render never fails at dispatch time. Callers supply defaults, "" included.
	var missing []string
	for _, v := range tmpl.Variables {
		if _, ok := spec.Context[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.NewValidation("context missing template variables: %s", strings.Join(missing, ", "))
	}

	job, err := s.Jobs.Enqueue(spec)
	if err != nil {
		return nil, err
	}

	if s.Nudge != nil {
		if err := s.Nudge.PublishJob(job.ID); err != nil {
			s.Log.Warn("dispatch nudge failed", zap.Int("job_id", job.ID), zap.Error(err))
		}
	}
	return job, nil
}

// JobStatus returns a job with its recipient ledger.
func (s *NotifyService) JobStatus(id int) (*model.MessageJob, []*model.MessageRecipient, error) {
	job, err := s.Jobs.GetJobByID(id)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, nil
	}
	recipients, err := s.Jobs.Recipients(id)
	if err != nil {
		return nil, nil, err
	}
	return job, recipients, nil
}
