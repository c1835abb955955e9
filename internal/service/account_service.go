// internal/service/account_service.go
package service

import (
	"time"

	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
)

// AccountService hosts the external payment-state actions. The enforcer sweep
// owns the grace_period -> suspended transition; these are the producer-side
// edges around it.
type AccountService struct {
	Grace repository.GraceRepositoryInterface
	Log   *zap.Logger
}

// PaymentLapsed moves an active account into the grace period, setting the
// start date once per cycle. A repeat call while already in grace is rejected.
func (s *AccountService) PaymentLapsed(entityID int, now time.Time) error {
	timer, err := s.Grace.GetTimer(entityID)
	if err != nil {
		return err
	}
	if timer == nil {
		return appErrors.NewValidation("no grace timer for entity %d", entityID)
	}
	if err := s.Grace.StartGrace(entityID, now); err != nil {
		if appErrors.IsState(err) {
			return appErrors.NewValidation("entity %d is %s, cannot start grace period", entityID, timer.AccountStatus)
		}
		return err
	}
	s.Log.Info("grace period started", zap.Int("entity_id", entityID))
	return nil
}

// Reactivate is the manual way out of suspended.
func (s *AccountService) Reactivate(entityID int) error {
	timer, err := s.Grace.GetTimer(entityID)
	if err != nil {
		return err
	}
	if timer == nil {
		return appErrors.NewValidation("no grace timer for entity %d", entityID)
	}
	if err := s.Grace.Reactivate(entityID); err != nil {
		if appErrors.IsState(err) {
			return appErrors.NewValidation("entity %d is %s, not suspended", entityID, timer.AccountStatus)
		}
		return err
	}
	s.Log.Info("entity reactivated", zap.Int("entity_id", entityID))
	return nil
}
