// internal/service/compliance_service.go
package service

import (
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
)

// ComplianceService hosts the remediation action: the only path that clears a
// block, and only when all three requirements are done. The guard never
// unblocks anyone.
type ComplianceService struct {
	Compliance repository.ComplianceRepositoryInterface
	Log        *zap.Logger
}

func (s *ComplianceService) Remediate(entityID int) (*model.ComplianceRecord, error) {
	rec, err := s.Compliance.Get(entityID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, appErrors.NewValidation("no compliance record for entity %d", entityID)
	}
	if !rec.Complete() {
		return nil, appErrors.NewValidation("requirements still unmet: %s", strings.Join(rec.Unmet(), ", "))
	}
	if !rec.Blocked {
		return rec, nil
	}
	if err := s.Compliance.ClearBlock(entityID); err != nil {
		if appErrors.IsState(err) {
			// Lost a race with another remediation; the goal state holds.
			s.Log.Warn("remediation raced", zap.Int("entity_id", entityID))
			return s.Compliance.Get(entityID)
		}
		return nil, err
	}
	s.Log.Info("entity remediated", zap.Int("entity_id", entityID))
	return s.Compliance.Get(entityID)
}
