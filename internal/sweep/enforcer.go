// internal/sweep/enforcer.go
package sweep

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
)

// UrgentThresholdDays is the tail of the grace window in which daily urgent
// reminders go out.
const UrgentThresholdDays = 3

// Enforcer is the daily payment sweep. Accounts whose grace window ran out are
// suspended (terminal until manual reactivation) with notifications to the
// contractor, the principal delegate and the admin; accounts in the last days
// of the window get an urgent reminder, deduped per day.
type Enforcer struct {
	Grace      repository.GraceRepositoryInterface
	Entities   repository.EntityRepositoryInterface
	Notify     *service.NotifyService
	AdminEmail string
	Log        *zap.Logger
}

func (e *Enforcer) RunOnce(now time.Time) (*Result, error) {
	timers, err := e.Grace.ListInGrace()
	if err != nil {
		return nil, err
	}

	res := &Result{Processed: len(timers)}
	for _, timer := range timers {
		remaining := timer.DaysRemaining(now)
		switch {
		case remaining <= 0:
			if err := e.suspend(timer); err != nil {
				e.Log.Error("enforcer: suspension skipped", zap.Int("entity_id", timer.EntityID), zap.Error(err))
				continue
			}
			res.add(fmt.Sprintf("suspended entity %d", timer.EntityID))
		case remaining <= UrgentThresholdDays:
			if err := e.urgentReminder(timer, remaining); err != nil {
				e.Log.Error("enforcer: reminder skipped", zap.Int("entity_id", timer.EntityID), zap.Error(err))
				continue
			}
			res.add(fmt.Sprintf("urgent reminder for entity %d (%d days left)", timer.EntityID, remaining))
		}
	}
	return res, nil
}

func (e *Enforcer) suspend(timer *model.GraceTimer) error {
	entity, err := e.Entities.GetByID(timer.EntityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("entity %d has a grace timer but no entity row", timer.EntityID)
	}

	// Three distinct jobs, one per audience, all enqueued before the terminal
	// flip: a partial failure leaves the timer in grace_period, so the next
	// run replays the set and the idempotency keys swallow the duplicates.
	targets := []struct {
		role string
		to   string
	}{
		{"contratante", entity.ContractorEmail},
		{"delegado", entity.DelegateEmail},
		{"admin", e.AdminEmail},
	}
	entityID := timer.EntityID
	for _, t := range targets {
		key := fmt.Sprintf("grace:suspended:%d:%s", entityID, t.role)
		if _, err := e.Notify.Enqueue(repository.EnqueueSpec{
			EntityID:     &entityID,
			TemplateSlug: TemplateSuspended,
			Recipients:   []string{t.to},
			Context: map[string]string{
				"nombre": entity.Name,
			},
			IdempotencyKey: &key,
		}); err != nil {
			return err
		}
	}

	if err := e.Grace.Suspend(entityID); err != nil {
		if appErrors.IsState(err) {
			return nil
		}
		return err
	}
	return nil
}

func (e *Enforcer) urgentReminder(timer *model.GraceTimer, remaining int) error {
	entity, err := e.Entities.GetByID(timer.EntityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("entity %d has a grace timer but no entity row", timer.EntityID)
	}

	entityID := timer.EntityID
	// Days-remaining in the key makes the reminder once-per-day even when the
	// sweep runs more than once.
	key := fmt.Sprintf("grace:urgent:%d:%d", entityID, remaining)
	if _, err := e.Notify.Enqueue(repository.EnqueueSpec{
		EntityID:     &entityID,
		TemplateSlug: TemplateGraceUrgent,
		Recipients:   []string{entity.ContractorEmail},
		Context: map[string]string{
			"nombre":         entity.Name,
			"dias_restantes": strconv.Itoa(remaining),
		},
		IdempotencyKey: &key,
	}); err != nil {
		return err
	}
	return e.Grace.MarkPaymentReminderSent(entityID)
}
