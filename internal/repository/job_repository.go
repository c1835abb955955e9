package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
)

// EnqueueSpec is the producer contract for creating a job.
type EnqueueSpec struct {
	EntityID       *int
	TemplateSlug   string
	Channel        string
	Recipients     []string
	Context        map[string]string
	IdempotencyKey *string
	ScheduledFor   *time.Time
}

type JobRepositoryInterface interface {
	// Enqueue inserts a job and its recipients atomically. If the spec carries
	// an idempotency key and a job with that key exists, the existing job is
	// returned and nothing is inserted.
	Enqueue(spec EnqueueSpec) (*model.MessageJob, error)
	GetJobByID(id int) (*model.MessageJob, error)
	GetJobByIdempotencyKey(key string) (*model.MessageJob, error)

	// ClaimBatch atomically moves up to limit due queued jobs to processing,
	// FIFO by creation time. Concurrent callers never claim the same job.
	ClaimBatch(limit int, now time.Time) ([]*model.MessageJob, error)
	// ClaimByID claims a single queued job if due; returns nil when another
	// claimer won or the job is not due yet.
	ClaimByID(id int, now time.Time) (*model.MessageJob, error)

	Recipients(jobID int) ([]*model.MessageRecipient, error)
	PendingRecipients(jobID int) ([]*model.MessageRecipient, error)
	MarkRecipientSent(id int, subject, body, providerMessageID string) error
	MarkRecipientError(id int, subject, body, errMsg string) error

	// FinalizeJob computes the aggregate job status once every recipient is
	// terminal: sent iff all sent, error iff at least one errored. Idempotent.
	FinalizeJob(id int) error
	// FailJob is the job-fatal path (missing template): all pending
	// recipients move to error and the job goes terminal with errMsg.
	FailJob(id int, errMsg string) error
}

type JobRepository struct {
	DB *sql.DB
}

var _ JobRepositoryInterface = (*JobRepository)(nil)

const jobColumns = `id, entity_id, template_slug, channel, context, status, idempotency_key, scheduled_for, error_msg, created_at`

func (r *JobRepository) Enqueue(spec EnqueueSpec) (*model.MessageJob, error) {
	if len(spec.Recipients) == 0 {
		return nil, appErrors.NewValidation("job requires at least one recipient")
	}

	if spec.IdempotencyKey != nil {
		existing, err := r.GetJobByIdempotencyKey(*spec.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	ctxJSON, err := json.Marshal(spec.Context)
	if err != nil {
		return nil, appErrors.NewValidation("context not serializable: %v", err)
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return nil, appErrors.NewStore("enqueue begin", err)
	}
	defer tx.Rollback()

	job := &model.MessageJob{
		EntityID:       spec.EntityID,
		TemplateSlug:   spec.TemplateSlug,
		Channel:        spec.Channel,
		Context:        spec.Context,
		Status:         model.JobQueued,
		IdempotencyKey: spec.IdempotencyKey,
		ScheduledFor:   spec.ScheduledFor,
	}
	err = tx.QueryRow(`
        INSERT INTO message_jobs (entity_id, template_slug, channel, context, status, idempotency_key, scheduled_for, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, created_at
    `, spec.EntityID, spec.TemplateSlug, spec.Channel, ctxJSON, model.JobQueued, spec.IdempotencyKey, spec.ScheduledFor).
		Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		// Lost a race on the idempotency key: another producer inserted the
		// same job between our lookup and insert. Return theirs.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && spec.IdempotencyKey != nil {
			return r.GetJobByIdempotencyKey(*spec.IdempotencyKey)
		}
		return nil, appErrors.NewStore("enqueue job", err)
	}

	for _, to := range spec.Recipients {
		if _, err := tx.Exec(`
            INSERT INTO message_recipients (job_id, to_address, status)
            VALUES ($1, $2, $3)
        `, job.ID, to, model.RecipientPending); err != nil {
			return nil, appErrors.NewStore("enqueue recipient", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.NewStore("enqueue commit", err)
	}
	return job, nil
}

func (r *JobRepository) GetJobByID(id int) (*model.MessageJob, error) {
	return r.scanJob(r.DB.QueryRow(
		`SELECT `+jobColumns+` FROM message_jobs WHERE id=$1`, id))
}

func (r *JobRepository) GetJobByIdempotencyKey(key string) (*model.MessageJob, error) {
	return r.scanJob(r.DB.QueryRow(
		`SELECT `+jobColumns+` FROM message_jobs WHERE idempotency_key=$1`, key))
}

func (r *JobRepository) ClaimBatch(limit int, now time.Time) ([]*model.MessageJob, error) {
	rows, err := r.DB.Query(`
        WITH claimed AS (
            UPDATE message_jobs
            SET status=$1
            WHERE id IN (
                SELECT id FROM message_jobs
                WHERE status=$2 AND (scheduled_for IS NULL OR scheduled_for <= $3)
                ORDER BY created_at, id
                FOR UPDATE SKIP LOCKED
                LIMIT $4
            )
            RETURNING `+jobColumns+`
        )
        SELECT `+jobColumns+` FROM claimed ORDER BY created_at, id
    `, model.JobProcessing, model.JobQueued, now, limit)
	if err != nil {
		return nil, appErrors.NewStore("claim batch", err)
	}
	defer rows.Close()

	jobs := []*model.MessageJob{}
	for rows.Next() {
		job, err := r.scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) ClaimByID(id int, now time.Time) (*model.MessageJob, error) {
	job, err := r.scanJob(r.DB.QueryRow(`
        UPDATE message_jobs
        SET status=$1
        WHERE id=$2 AND status=$3 AND (scheduled_for IS NULL OR scheduled_for <= $4)
        RETURNING `+jobColumns, model.JobProcessing, id, model.JobQueued, now))
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) Recipients(jobID int) ([]*model.MessageRecipient, error) {
	return r.queryRecipients(
		`SELECT id, job_id, to_address, rendered_subject, rendered_body, provider_message_id, status, error_msg
         FROM message_recipients WHERE job_id=$1 ORDER BY id`, jobID)
}

func (r *JobRepository) PendingRecipients(jobID int) ([]*model.MessageRecipient, error) {
	return r.queryRecipients(
		`SELECT id, job_id, to_address, rendered_subject, rendered_body, provider_message_id, status, error_msg
         FROM message_recipients WHERE job_id=$1 AND status=$2 ORDER BY id`, jobID, model.RecipientPending)
}

// MarkRecipientSent moves a pending recipient to sent. Any other starting
// state is an illegal transition and leaves the row untouched.
func (r *JobRepository) MarkRecipientSent(id int, subject, body, providerMessageID string) error {
	res, err := r.DB.Exec(`
        UPDATE message_recipients
        SET status=$1, rendered_subject=$2, rendered_body=$3, provider_message_id=$4, error_msg=''
        WHERE id=$5 AND status=$6
    `, model.RecipientSent, subject, body, providerMessageID, id, model.RecipientPending)
	if err != nil {
		return appErrors.NewStore("mark recipient sent", err)
	}
	return r.checkTransition(res, id, model.RecipientSent)
}

func (r *JobRepository) MarkRecipientError(id int, subject, body, errMsg string) error {
	res, err := r.DB.Exec(`
        UPDATE message_recipients
        SET status=$1, rendered_subject=$2, rendered_body=$3, error_msg=$4
        WHERE id=$5 AND status=$6
    `, model.RecipientError, subject, body, errMsg, id, model.RecipientPending)
	if err != nil {
		return appErrors.NewStore("mark recipient error", err)
	}
	return r.checkTransition(res, id, model.RecipientError)
}

func (r *JobRepository) checkTransition(res sql.Result, id int, target string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.NewStore("rows affected", err)
	}
	if n == 1 {
		return nil
	}
	var current string
	if err := r.DB.QueryRow(`SELECT status FROM message_recipients WHERE id=$1`, id).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.NewStore("mark recipient", fmt.Errorf("recipient %d not found", id))
		}
		return appErrors.NewStore("mark recipient", err)
	}
	return appErrors.NewState(current, target)
}

func (r *JobRepository) FinalizeJob(id int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return appErrors.NewStore("finalize begin", err)
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRow(`SELECT status FROM message_jobs WHERE id=$1 FOR UPDATE`, id).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.NewStore("finalize", fmt.Errorf("job %d not found", id))
		}
		return appErrors.NewStore("finalize", err)
	}
	if status != model.JobProcessing {
		// Already terminal (or still queued): second finalize is a no-op.
		return nil
	}

	var pending, failed int
	err = tx.QueryRow(`
        SELECT
            COUNT(*) FILTER (WHERE status=$2),
            COUNT(*) FILTER (WHERE status=$3)
        FROM message_recipients WHERE job_id=$1
    `, id, model.RecipientPending, model.RecipientError).Scan(&pending, &failed)
	if err != nil {
		return appErrors.NewStore("finalize count", err)
	}
	if pending > 0 {
		return nil
	}

	newStatus := model.JobSent
	errMsg := ""
	if failed > 0 {
		newStatus = model.JobError
		errMsg = fmt.Sprintf("%d failed", failed)
	}
	if _, err := tx.Exec(
		`UPDATE message_jobs SET status=$1, error_msg=$2 WHERE id=$3`,
		newStatus, errMsg, id); err != nil {
		return appErrors.NewStore("finalize update", err)
	}
	return tx.Commit()
}

func (r *JobRepository) FailJob(id int, errMsg string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return appErrors.NewStore("fail job begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
        UPDATE message_recipients SET status=$1, error_msg=$2
        WHERE job_id=$3 AND status=$4
    `, model.RecipientError, errMsg, id, model.RecipientPending); err != nil {
		return appErrors.NewStore("fail job recipients", err)
	}
	if _, err := tx.Exec(`
        UPDATE message_jobs SET status=$1, error_msg=$2
        WHERE id=$3 AND status=$4
    `, model.JobError, errMsg, id, model.JobProcessing); err != nil {
		return appErrors.NewStore("fail job", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *JobRepository) scanJob(row rowScanner) (*model.MessageJob, error) {
	job, err := r.scanJobRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) scanJobRow(row rowScanner) (*model.MessageJob, error) {
	var job model.MessageJob
	var ctxJSON []byte
	err := row.Scan(
		&job.ID, &job.EntityID, &job.TemplateSlug, &job.Channel, &ctxJSON,
		&job.Status, &job.IdempotencyKey, &job.ScheduledFor, &job.ErrorMsg, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &job.Context); err != nil {
			return nil, appErrors.NewStore("decode job context", err)
		}
	}
	return &job, nil
}

func (r *JobRepository) queryRecipients(query string, args ...any) ([]*model.MessageRecipient, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, appErrors.NewStore("query recipients", err)
	}
	defer rows.Close()

	recipients := []*model.MessageRecipient{}
	for rows.Next() {
		rec := &model.MessageRecipient{}
		if err := rows.Scan(
			&rec.ID, &rec.JobID, &rec.ToAddress, &rec.RenderedSubject,
			&rec.RenderedBody, &rec.ProviderMessageID, &rec.Status, &rec.ErrorMsg,
		); err != nil {
			return nil, appErrors.NewStore("scan recipient", err)
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}
