// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
	"github.com/ramonsune/custodia-360-sub009/internal/render"
	"github.com/ramonsune/custodia-360-sub009/internal/repository"
	"github.com/ramonsune/custodia-360-sub009/internal/transport"
)

// Dispatcher drains the durable job queue: claim, render, send, finalize.
// Multiple instances may run concurrently; the atomic claim in the store is
// the only mutual exclusion. A claimed job always runs to FinalizeJob.
type Dispatcher struct {
	Jobs       repository.JobRepositoryInterface
	Templates  repository.TemplateRepositoryInterface
	Transports transport.Registry

	BatchSize   int
	Workers     int
	SendTimeout time.Duration

	Log   *zap.Logger
	Clock func() time.Time
}

func New(jobs repository.JobRepositoryInterface, templates repository.TemplateRepositoryInterface, transports transport.Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Jobs:        jobs,
		Templates:   templates,
		Transports:  transports,
		BatchSize:   50,
		Workers:     5,
		SendTimeout: 20 * time.Second,
		Log:         log,
		Clock:       time.Now,
	}
}

// Run polls on a fixed cadence until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx, d.Clock()); err != nil {
				d.Log.Error("dispatch tick failed", zap.Error(err))
			}
		}
	}
}

// RunOnce claims one batch of due jobs and processes each to completion.
// Returns the number of jobs processed.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (int, error) {
	jobs, err := d.Jobs.ClaimBatch(d.BatchSize, now)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		d.processJob(ctx, job)
	}
	return len(jobs), nil
}

// ProcessJobID is the nudge path: claim a single job if still due and queued,
// then process it. A lost race is not an error.
func (d *Dispatcher) ProcessJobID(ctx context.Context, id int) error {
	job, err := d.Jobs.ClaimByID(id, d.Clock())
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	d.processJob(ctx, job)
	return nil
}

func (d *Dispatcher) processJob(ctx context.Context, job *model.MessageJob) {
	log := d.Log.With(zap.Int("job_id", job.ID), zap.String("template", job.TemplateSlug))

	tmpl, err := d.Templates.GetBySlug(job.TemplateSlug)
	if err != nil && !appErrors.IsTemplateNotFound(err) {
		log.Error("load template", zap.Error(err))
		return
	}
	if err != nil || !tmpl.Active {
		// Job-fatal, terminal, no retry.
		msg := "template not found"
		if err == nil {
			msg = "template inactive"
		}
		log.Warn("job failed", zap.String("reason", msg))
		if err := d.Jobs.FailJob(job.ID, msg); err != nil {
			log.Error("fail job", zap.Error(err))
		}
		return
	}

	pending, err := d.Jobs.PendingRecipients(job.ID)
	if err != nil {
		log.Error("load recipients", zap.Error(err))
		return
	}

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, rcpt := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(rcpt *model.MessageRecipient) {
			defer wg.Done()
			defer func() { <-sem }()
			d.deliver(ctx, tmpl, job, rcpt, log)
		}(rcpt)
	}
	wg.Wait()

	if err := d.Jobs.FinalizeJob(job.ID); err != nil {
		log.Error("finalize job", zap.Error(err))
	}
}

// deliver renders and sends to one recipient. Failures touch only this
// recipient; siblings keep going.
func (d *Dispatcher) deliver(ctx context.Context, tmpl *model.MessageTemplate, job *model.MessageJob, rcpt *model.MessageRecipient, log *zap.Logger) {
	rendered, err := render.Message(tmpl.SubjectPattern, tmpl.BodyPattern, job.Context)
	if err != nil {
		d.markError(rcpt.ID, "", "", err.Error(), log)
		return
	}

	sender, err := d.Transports.For(job.Channel)
	if err != nil {
		d.markError(rcpt.ID, rendered.Subject, rendered.Body, err.Error(), log)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.SendTimeout)
	defer cancel()
	providerID, err := sender.Send(sendCtx, rcpt.ToAddress, rendered.Subject, rendered.Body)
	if err != nil {
		log.Warn("send failed", zap.Int("recipient_id", rcpt.ID), zap.Error(err))
		d.markError(rcpt.ID, rendered.Subject, rendered.Body, err.Error(), log)
		return
	}

	if err := d.Jobs.MarkRecipientSent(rcpt.ID, rendered.Subject, rendered.Body, providerID); err != nil {
		if appErrors.IsState(err) {
			log.Warn("ignored illegal transition", zap.Int("recipient_id", rcpt.ID), zap.Error(err))
			return
		}
		log.Error("mark recipient sent", zap.Int("recipient_id", rcpt.ID), zap.Error(err))
	}
}

func (d *Dispatcher) markError(recipientID int, subject, body, msg string, log *zap.Logger) {
	if err := d.Jobs.MarkRecipientError(recipientID, subject, body, msg); err != nil {
		if appErrors.IsState(err) {
			log.Warn("ignored illegal transition", zap.Int("recipient_id", recipientID), zap.Error(err))
			return
		}
		log.Error("mark recipient error", zap.Int("recipient_id", recipientID), zap.Error(err))
	}
}
