package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
)

type GraceRepositoryInterface interface {
	GetTimer(entityID int) (*model.GraceTimer, error)
	UpsertTimer(timer *model.GraceTimer) error
	ListInGrace() ([]*model.GraceTimer, error)
	// StartGrace moves an active account into grace_period and sets the start
	// date, once per cycle. A second call in the same cycle is a StateError.
	StartGrace(entityID int, now time.Time) error
	// Suspend is terminal; only ListInGrace accounts can reach it.
	Suspend(entityID int) error
	// Reactivate is the manual way out of suspended.
	Reactivate(entityID int) error
	MarkPaymentReminderSent(entityID int) error
}

type GraceRepository struct {
	DB *sql.DB
}

var _ GraceRepositoryInterface = (*GraceRepository)(nil)

const graceColumns = `entity_id, account_status, grace_period_start_date, second_payment_status, payment_reminder_sent, updated_at`

func (r *GraceRepository) GetTimer(entityID int) (*model.GraceTimer, error) {
	var g model.GraceTimer
	err := r.DB.QueryRow(
		`SELECT `+graceColumns+` FROM grace_timers WHERE entity_id=$1`, entityID,
	).Scan(
		&g.EntityID, &g.AccountStatus, &g.GracePeriodStartDate,
		&g.SecondPaymentStatus, &g.PaymentReminderSent, &g.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.NewStore("get grace timer", err)
	}
	return &g, nil
}

func (r *GraceRepository) UpsertTimer(timer *model.GraceTimer) error {
	_, err := r.DB.Exec(`
        INSERT INTO grace_timers (entity_id, account_status, grace_period_start_date, second_payment_status, payment_reminder_sent, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (entity_id) DO UPDATE SET
            second_payment_status=EXCLUDED.second_payment_status,
            updated_at=NOW()
    `, timer.EntityID, timer.AccountStatus, timer.GracePeriodStartDate,
		timer.SecondPaymentStatus, timer.PaymentReminderSent)
	if err != nil {
		return appErrors.NewStore("upsert grace timer", err)
	}
	return nil
}

func (r *GraceRepository) ListInGrace() ([]*model.GraceTimer, error) {
	rows, err := r.DB.Query(
		`SELECT `+graceColumns+` FROM grace_timers WHERE account_status=$1 ORDER BY entity_id`,
		model.AccountGracePeriod)
	if err != nil {
		return nil, appErrors.NewStore("list grace timers", err)
	}
	defer rows.Close()

	timers := []*model.GraceTimer{}
	for rows.Next() {
		g := &model.GraceTimer{}
		if err := rows.Scan(
			&g.EntityID, &g.AccountStatus, &g.GracePeriodStartDate,
			&g.SecondPaymentStatus, &g.PaymentReminderSent, &g.UpdatedAt,
		); err != nil {
			return nil, appErrors.NewStore("scan grace timer", err)
		}
		timers = append(timers, g)
	}
	return timers, rows.Err()
}

func (r *GraceRepository) StartGrace(entityID int, now time.Time) error {
	res, err := r.DB.Exec(`
        UPDATE grace_timers
        SET account_status=$1, grace_period_start_date=$2, payment_reminder_sent=false, updated_at=NOW()
        WHERE entity_id=$3 AND account_status=$4
    `, model.AccountGracePeriod, now, entityID, model.AccountActive)
	if err != nil {
		return appErrors.NewStore("start grace", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewState(model.AccountGracePeriod, model.AccountGracePeriod)
	}
	return nil
}

func (r *GraceRepository) Suspend(entityID int) error {
	res, err := r.DB.Exec(`
        UPDATE grace_timers
        SET account_status=$1, updated_at=NOW()
        WHERE entity_id=$2 AND account_status=$3
    `, model.AccountSuspended, entityID, model.AccountGracePeriod)
	if err != nil {
		return appErrors.NewStore("suspend entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewState(model.AccountSuspended, model.AccountSuspended)
	}
	return nil
}

func (r *GraceRepository) Reactivate(entityID int) error {
	res, err := r.DB.Exec(`
        UPDATE grace_timers
        SET account_status=$1, grace_period_start_date=NULL, payment_reminder_sent=false, updated_at=NOW()
        WHERE entity_id=$2 AND account_status=$3
    `, model.AccountActive, entityID, model.AccountSuspended)
	if err != nil {
		return appErrors.NewStore("reactivate entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewState(model.AccountActive, model.AccountActive)
	}
	return nil
}

func (r *GraceRepository) MarkPaymentReminderSent(entityID int) error {
	_, err := r.DB.Exec(
		`UPDATE grace_timers SET payment_reminder_sent=true, updated_at=NOW() WHERE entity_id=$1`,
		entityID)
	if err != nil {
		return appErrors.NewStore("mark payment reminder", err)
	}
	return nil
}
