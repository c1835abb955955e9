package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
)

func newTestGuard(store *repository.InMemoryStore) *Guard {
	return &Guard{
		Compliance: store,
		Entities:   store,
		Notify:     newTestNotify(store),
		Log:        zap.NewNop(),
	}
}

func TestGuardBlocksPastDeadline(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	store.AddEntity(&model.Entity{ID: 1, Name: "Club Norte", ContractorEmail: "norte@example.com"})
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:    1,
		DeadlineAt:  now.Add(-24 * time.Hour),
		ChannelDone: true,
	}))

	g := newTestGuard(store)
	res, err := g.RunOnce(now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Actions, 1)

	rec, _ := store.Get(1)
	assert.True(t, rec.Blocked)
	assert.Equal(t, "mapa de riesgos, certificados penales", rec.BlockedReason)

	jobs := store.AllJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, TemplateComplianceBlocked, jobs[0].TemplateSlug)
}

func TestGuardIsIdempotentSameDay(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	store.AddEntity(&model.Entity{ID: 1, Name: "Club Norte", ContractorEmail: "norte@example.com"})
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: now.Add(-24 * time.Hour),
	}))

	g := newTestGuard(store)
	_, err := g.RunOnce(now)
	require.NoError(t, err)

	// The record is re-examined but the unchanged unmet set dedupes the
	// notification and the block flip reports a StateError no-op.
	res, err := g.RunOnce(now)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	assert.Len(t, store.AllJobs(), 1)
}

func TestGuardNotificationRetriedAfterEnqueueFailure(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	store.AddEntity(&model.Entity{ID: 1, Name: "Club Norte", ContractorEmail: "norte@example.com"})
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: now.Add(-24 * time.Hour),
	}))

	notify, jobs := newFlakyNotify(store, 0)
	g := &Guard{Compliance: store, Entities: store, Notify: notify, Log: zap.NewNop()}

	// Enqueue fails before the flip: nothing is committed.
	res, err := g.RunOnce(now)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	rec, _ := store.Get(1)
	assert.False(t, rec.Blocked)
	assert.Empty(t, store.AllJobs())

	// Store recovered: the next run delivers the notification and blocks.
	jobs.budget = 10
	res, err = g.RunOnce(now)
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	rec, _ = store.Get(1)
	assert.True(t, rec.Blocked)
	assert.Len(t, store.AllJobs(), 1)
}

func TestGuardReannouncesChangedUnmetSet(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	store.AddEntity(&model.Entity{ID: 1, Name: "Club Norte", ContractorEmail: "norte@example.com"})
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: now.Add(-24 * time.Hour),
	}))

	g := newTestGuard(store)
	_, err := g.RunOnce(now)
	require.NoError(t, err)
	require.Len(t, store.AllJobs(), 1)

	// Two requirements completed while still blocked: the shrunken unmet set
	// carries a new dedupe key and earns a fresh notification, no second flip.
	require.NoError(t, store.SetRequirements(1, true, true, true, false))
	res, err := g.RunOnce(now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, res.Actions)

	jobs := store.AllJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, model.RequirementPenales, jobs[1].Context["requisitos"])
	rec, _ := store.Get(1)
	assert.True(t, rec.Blocked)
}

func TestGuardSkipsCompliantPastDeadline(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:    1,
		DeadlineAt:  now.Add(-time.Hour),
		ChannelDone: true,
		RiskmapDone: true,
		PenalesDone: true,
	}))

	g := newTestGuard(store)
	res, err := g.RunOnce(now)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)

	rec, _ := store.Get(1)
	assert.False(t, rec.Blocked)
	assert.Empty(t, store.AllJobs())
}

func TestGuardSkipsBeforeDeadline(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: now.Add(48 * time.Hour),
	}))

	g := newTestGuard(store)
	res, err := g.RunOnce(now)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Empty(t, store.AllJobs())
}

func TestGuardReblocksAfterRemediationLapse(t *testing.T) {
	store := repository.NewInMemoryStore()
	seedSweepTemplates(t, store)
	now := time.Now()

	store.AddEntity(&model.Entity{ID: 1, Name: "Club Norte", ContractorEmail: "norte@example.com"})
	require.NoError(t, store.Upsert(&model.ComplianceRecord{
		EntityID:   1,
		DeadlineAt: now.Add(-24 * time.Hour),
	}))

	g := newTestGuard(store)
	_, err := g.RunOnce(now)
	require.NoError(t, err)

	// Remediation clears the block; a later lapse of one requirement blocks
	// again with a different unmet set and a fresh notification.
	require.NoError(t, store.SetRequirements(1, true, true, true, true))
	require.NoError(t, store.ClearBlock(1))
	require.NoError(t, store.SetRequirements(1, true, true, true, false))

	res, err := g.RunOnce(now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)

	rec, _ := store.Get(1)
	assert.True(t, rec.Blocked)
	assert.Equal(t, model.RequirementPenales, rec.BlockedReason)
	assert.Len(t, store.AllJobs(), 2)
}
