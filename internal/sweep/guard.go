// internal/sweep/guard.go
package sweep

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
)

// Guard is the daily compliance sweep. It blocks entities past their deadline
// with unmet requirements and notifies the contractor. Blocking is one-way:
// the guard never clears a block. Every past-deadline record is re-examined on
// every run; the unmet-set dedupe key keeps repeated runs from re-notifying an
// unchanged situation, while a changed unmet set gets a fresh notification.
type Guard struct {
	Compliance repository.ComplianceRepositoryInterface
	Entities   repository.EntityRepositoryInterface
	Notify     *service.NotifyService
	Log        *zap.Logger
}

func (g *Guard) RunOnce(now time.Time) (*Result, error) {
	records, err := g.Compliance.ListPastDeadline(now)
	if err != nil {
		return nil, err
	}

	res := &Result{Processed: len(records)}
	for _, rec := range records {
		unmet := rec.Unmet()
		if len(unmet) == 0 {
			// Past deadline but everything done: compliant, leave it alone.
			continue
		}
		flipped, err := g.notifyAndBlock(rec, unmet)
		if err != nil {
			g.Log.Error("guard: entity skipped", zap.Int("entity_id", rec.EntityID), zap.Error(err))
			continue
		}
		if flipped {
			res.add(fmt.Sprintf("blocked entity %d: %s", rec.EntityID, strings.Join(unmet, ", ")))
		}
	}
	return res, nil
}

// notifyAndBlock enqueues the keyed contractor notification, then flips the
// block. The enqueue comes first: if either step fails the record stays in
// next run's working set, and the dedupe key makes the replay safe.
func (g *Guard) notifyAndBlock(rec *model.ComplianceRecord, unmet []string) (bool, error) {
	entity, err := g.Entities.GetByID(rec.EntityID)
	if err != nil {
		return false, err
	}
	if entity == nil {
		return false, fmt.Errorf("entity %d has a compliance record but no entity row", rec.EntityID)
	}

	entityID := rec.EntityID
	reason := strings.Join(unmet, ", ")
	// The unmet set is part of the key: an already blocked entity whose unmet
	// set changed gets a fresh notification naming exactly what is missing now.
	key := fmt.Sprintf("guard:blocked:%d:%s", entityID, strings.Join(unmet, "|"))
	if _, err := g.Notify.Enqueue(repository.EnqueueSpec{
		EntityID:     &entityID,
		TemplateSlug: TemplateComplianceBlocked,
		Recipients:   []string{entity.ContractorEmail},
		Context: map[string]string{
			"nombre":       entity.Name,
			"requisitos":   reason,
			"fecha_limite": rec.DeadlineAt.Format("02/01/2006"),
		},
		IdempotencyKey: &key,
	}); err != nil {
		return false, err
	}

	if err := g.Compliance.Block(entityID, reason); err != nil {
		if appErrors.IsState(err) {
			// Already blocked, this run only refreshed the notification.
			return false, nil
		}
		return false, err
	}
	return true, nil
}
