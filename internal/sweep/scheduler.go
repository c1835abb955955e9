// internal/sweep/scheduler.go
package sweep

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/service"
)

// Day offsets after contract start on which reminders fire. Each offset
// matches the half-open window [offset, offset+1) days, so it triggers once
// on the day reached; a sweep that skips that day skips the offset for good.
var (
	OnboardingOffsets = []int{0, 7, 21, 28, 30}
	BillingOffsets    = []int{150, 330}
)

// Scheduler is the daily reminder sweep. Dedupe keys derived from the entity
// and offset label make it safe to run any number of times per day.
type Scheduler struct {
	Entities repository.EntityRepositoryInterface
	Notify   *service.NotifyService
	Log      *zap.Logger
}

func (s *Scheduler) RunOnce(now time.Time) (*Result, error) {
	entities, err := s.Entities.ListAll()
	if err != nil {
		return nil, err
	}

	res := &Result{Processed: len(entities)}
	for _, entity := range entities {
		if now.Before(entity.ContractStartDate) {
			continue
		}
		elapsed := int(now.Sub(entity.ContractStartDate).Hours() / 24)

		for _, offset := range OnboardingOffsets {
			if elapsed != offset {
				continue
			}
			label := fmt.Sprintf("onboarding-d%d", offset)
			if err := s.enqueueReminder(entity, TemplateOnboardingReminder, label, offset); err != nil {
				s.Log.Error("scheduler: reminder skipped", zap.Int("entity_id", entity.ID), zap.String("label", label), zap.Error(err))
				continue
			}
			res.add(fmt.Sprintf("reminder %s for entity %d", label, entity.ID))
		}
		for _, offset := range BillingOffsets {
			if elapsed != offset {
				continue
			}
			label := fmt.Sprintf("billing-d%d", offset)
			if err := s.enqueueReminder(entity, TemplateBillingReminder, label, offset); err != nil {
				s.Log.Error("scheduler: reminder skipped", zap.Int("entity_id", entity.ID), zap.String("label", label), zap.Error(err))
				continue
			}
			res.add(fmt.Sprintf("reminder %s for entity %d", label, entity.ID))
		}
	}
	return res, nil
}

func (s *Scheduler) enqueueReminder(entity *model.Entity, slug, label string, offset int) error {
	entityID := entity.ID
	key := fmt.Sprintf("reminder:%s:%d", label, entityID)
	_, err := s.Notify.Enqueue(repository.EnqueueSpec{
		EntityID:     &entityID,
		TemplateSlug: slug,
		Recipients:   []string{entity.ContractorEmail},
		Context: map[string]string{
			"nombre": entity.Name,
			"dias":   strconv.Itoa(offset),
		},
		IdempotencyKey: &key,
	})
	return err
}
