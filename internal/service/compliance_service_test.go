package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
)

func TestRemediateClearsBlock(t *testing.T) {
	store := repository.NewInMemoryStore()
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.Block(1, model.RequirementRiskmap))
	require.NoError(t, store.SetRequirements(1, true, true, true, true))

	svc := &ComplianceService{Compliance: store, Log: zap.NewNop()}
	rec, err := svc.Remediate(1)
	require.NoError(t, err)
	assert.False(t, rec.Blocked)
	assert.Empty(t, rec.BlockedReason)
}

func TestRemediateRejectsIncomplete(t *testing.T) {
	store := repository.NewInMemoryStore()
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:    1,
		DeadlineAt:  time.Now().Add(-time.Hour),
		ChannelDone: true,
		RiskmapDone: true,
	}))
	require.NoError(t, store.Block(1, model.RequirementPenales))

	svc := &ComplianceService{Compliance: store, Log: zap.NewNop()}
	_, err := svc.Remediate(1)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Contains(t, err.Error(), model.RequirementPenales)

	rec, _ := store.Get(1)
	assert.True(t, rec.Blocked)
}

func TestRemediateUnblockedIsNoOp(t *testing.T) {
	store := repository.NewInMemoryStore()
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:    1,
		DeadlineAt:  time.Now().Add(time.Hour),
		ChannelDone: true,
		RiskmapDone: true,
		PenalesDone: true,
	}))

	svc := &ComplianceService{Compliance: store, Log: zap.NewNop()}
	rec, err := svc.Remediate(1)
	require.NoError(t, err)
	assert.False(t, rec.Blocked)
}

func TestRemediateUnknownEntity(t *testing.T) {
	svc := &ComplianceService{Compliance: repository.NewInMemoryStore(), Log: zap.NewNop()}
	_, err := svc.Remediate(404)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}
