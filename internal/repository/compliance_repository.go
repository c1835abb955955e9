package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
)

type ComplianceRepositoryInterface interface {
	Get(entityID int) (*model.ComplianceRecord, error)
	Upsert(rec *model.ComplianceRecord) error
	// ListPastDeadline returns every record past its deadline at now, blocked
	// or not. The guard re-examines blocked records so notifications lost to a
	// partial failure, or owed for a changed unmet set, are replayed under
	// their dedupe keys.
	ListPastDeadline(now time.Time) ([]*model.ComplianceRecord, error)
	// Block flips the one-way gate. Only the guard calls this; a record that
	// is already blocked is left untouched and reported as a StateError.
	Block(entityID int, reason string) error
	// ClearBlock is the remediation path: succeeds only when all three
	// requirements are done, otherwise StateError.
	ClearBlock(entityID int) error
	SetRequirements(entityID int, channelDone, channelVerified, riskmapDone, penalesDone bool) error
}

type ComplianceRepository struct {
	DB *sql.DB
}

var _ ComplianceRepositoryInterface = (*ComplianceRepository)(nil)

const complianceColumns = `entity_id, deadline_at, channel_done, channel_verified, riskmap_done, penales_done, blocked, blocked_reason, updated_at`

func (r *ComplianceRepository) Get(entityID int) (*model.ComplianceRecord, error) {
	var rec model.ComplianceRecord
	err := r.DB.QueryRow(
		`SELECT `+complianceColumns+` FROM compliance_records WHERE entity_id=$1`, entityID,
	).Scan(
		&rec.EntityID, &rec.DeadlineAt, &rec.ChannelDone, &rec.ChannelVerified,
		&rec.RiskmapDone, &rec.PenalesDone, &rec.Blocked, &rec.BlockedReason, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.NewStore("get compliance record", err)
	}
	return &rec, nil
}

func (r *ComplianceRepository) Upsert(rec *model.ComplianceRecord) error {
	_, err := r.DB.Exec(`
        INSERT INTO compliance_records (entity_id, deadline_at, channel_done, channel_verified, riskmap_done, penales_done, blocked, blocked_reason, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        ON CONFLICT (entity_id) DO UPDATE SET
            deadline_at=EXCLUDED.deadline_at,
            channel_done=EXCLUDED.channel_done,
            channel_verified=EXCLUDED.channel_verified,
            riskmap_done=EXCLUDED.riskmap_done,
            penales_done=EXCLUDED.penales_done,
            updated_at=NOW()
    `, rec.EntityID, rec.DeadlineAt, rec.ChannelDone, rec.ChannelVerified,
		rec.RiskmapDone, rec.PenalesDone, rec.Blocked, rec.BlockedReason)
	if err != nil {
		return appErrors.NewStore("upsert compliance record", err)
	}
	return nil
}

func (r *ComplianceRepository) ListPastDeadline(now time.Time) ([]*model.ComplianceRecord, error) {
	rows, err := r.DB.Query(`
        SELECT `+complianceColumns+`
        FROM compliance_records
        WHERE deadline_at < $1
        ORDER BY entity_id
    `, now)
	if err != nil {
		return nil, appErrors.NewStore("list compliance records", err)
	}
	defer rows.Close()

	records := []*model.ComplianceRecord{}
	for rows.Next() {
		rec := &model.ComplianceRecord{}
		if err := rows.Scan(
			&rec.EntityID, &rec.DeadlineAt, &rec.ChannelDone, &rec.ChannelVerified,
			&rec.RiskmapDone, &rec.PenalesDone, &rec.Blocked, &rec.BlockedReason, &rec.UpdatedAt,
		); err != nil {
			return nil, appErrors.NewStore("scan compliance record", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *ComplianceRepository) Block(entityID int, reason string) error {
	res, err := r.DB.Exec(`
        UPDATE compliance_records
        SET blocked=true, blocked_reason=$1, updated_at=NOW()
        WHERE entity_id=$2 AND blocked=false
    `, reason, entityID)
	if err != nil {
		return appErrors.NewStore("block entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewState("blocked", "blocked")
	}
	return nil
}

func (r *ComplianceRepository) ClearBlock(entityID int) error {
	res, err := r.DB.Exec(`
        UPDATE compliance_records
        SET blocked=false, blocked_reason='', updated_at=NOW()
        WHERE entity_id=$1 AND blocked=true
          AND channel_done=true AND riskmap_done=true AND penales_done=true
    `, entityID)
	if err != nil {
		return appErrors.NewStore("clear block", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewState("blocked", "compliant")
	}
	return nil
}

func (r *ComplianceRepository) SetRequirements(entityID int, channelDone, channelVerified, riskmapDone, penalesDone bool) error {
	_, err := r.DB.Exec(`
        UPDATE compliance_records
        SET channel_done=$1, channel_verified=$2, riskmap_done=$3, penales_done=$4, updated_at=NOW()
        WHERE entity_id=$5
    `, channelDone, channelVerified, riskmapDone, penalesDone, entityID)
	if err != nil {
		return appErrors.NewStore("set requirements", err)
	}
	return nil
}
