package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
)

// InMemoryStore implements every repository interface with the same transition
// semantics as the SQL implementations. Tests and local development use it in
// place of Postgres.
type InMemoryStore struct {
	mu         sync.Mutex
	jobs       map[int]*model.MessageJob
	recipients map[int]*model.MessageRecipient
	templates  map[string]*model.MessageTemplate
	compliance map[int]*model.ComplianceRecord
	grace      map[int]*model.GraceTimer
	entities   map[int]*model.Entity
	nextJob    int
	nextRcpt   int
	nextTmpl   int
}

var (
	_ JobRepositoryInterface        = (*InMemoryStore)(nil)
	_ TemplateRepositoryInterface   = (*InMemoryStore)(nil)
	_ ComplianceRepositoryInterface = (*InMemoryStore)(nil)
	_ GraceRepositoryInterface      = (*InMemoryStore)(nil)
	_ EntityRepositoryInterface     = (*InMemoryStore)(nil)
)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs:       map[int]*model.MessageJob{},
		recipients: map[int]*model.MessageRecipient{},
		templates:  map[string]*model.MessageTemplate{},
		compliance: map[int]*model.ComplianceRecord{},
		grace:      map[int]*model.GraceTimer{},
		entities:   map[int]*model.Entity{},
	}
}

// ---------- jobs & recipients ----------

func (s *InMemoryStore) Enqueue(spec EnqueueSpec) (*model.MessageJob, error) {
	if len(spec.Recipients) == 0 {
		return nil, appErrors.NewValidation("job requires at least one recipient")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.IdempotencyKey != nil {
		for _, j := range s.jobs {
			if j.IdempotencyKey != nil && *j.IdempotencyKey == *spec.IdempotencyKey {
				return copyJob(j), nil
			}
		}
	}

	s.nextJob++
	job := &model.MessageJob{
		ID:             s.nextJob,
		EntityID:       spec.EntityID,
		TemplateSlug:   spec.TemplateSlug,
		Channel:        spec.Channel,
		Context:        spec.Context,
		Status:         model.JobQueued,
		IdempotencyKey: spec.IdempotencyKey,
		ScheduledFor:   spec.ScheduledFor,
		CreatedAt:      time.Now(),
	}
	s.jobs[job.ID] = job
	for _, to := range spec.Recipients {
		s.nextRcpt++
		s.recipients[s.nextRcpt] = &model.MessageRecipient{
			ID:        s.nextRcpt,
			JobID:     job.ID,
			ToAddress: to,
			Status:    model.RecipientPending,
		}
	}
	return copyJob(job), nil
}

func (s *InMemoryStore) GetJobByID(id int) (*model.MessageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return copyJob(j), nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetJobByIdempotencyKey(key string) (*model.MessageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.IdempotencyKey != nil && *j.IdempotencyKey == key {
			return copyJob(j), nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ClaimBatch(limit int, now time.Time) ([]*model.MessageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := []*model.MessageJob{}
	for _, j := range s.jobs {
		if j.Status == model.JobQueued && (j.ScheduledFor == nil || !j.ScheduledFor.After(now)) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].CreatedAt.Equal(due[k].CreatedAt) {
			return due[i].ID < due[k].ID
		}
		return due[i].CreatedAt.Before(due[k].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := []*model.MessageJob{}
	for _, j := range due {
		j.Status = model.JobProcessing
		claimed = append(claimed, copyJob(j))
	}
	return claimed, nil
}

func (s *InMemoryStore) ClaimByID(id int, now time.Time) (*model.MessageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobQueued {
		return nil, nil
	}
	if j.ScheduledFor != nil && j.ScheduledFor.After(now) {
		return nil, nil
	}
	j.Status = model.JobProcessing
	return copyJob(j), nil
}

func (s *InMemoryStore) Recipients(jobID int) ([]*model.MessageRecipient, error) {
	return s.recipientsWhere(jobID, "")
}

func (s *InMemoryStore) PendingRecipients(jobID int) ([]*model.MessageRecipient, error) {
	return s.recipientsWhere(jobID, model.RecipientPending)
}

func (s *InMemoryStore) recipientsWhere(jobID int, status string) ([]*model.MessageRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.MessageRecipient{}
	for _, r := range s.recipients {
		if r.JobID == jobID && (status == "" || r.Status == status) {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *InMemoryStore) MarkRecipientSent(id int, subject, body, providerMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return appErrors.NewStore("mark recipient", fmt.Errorf("recipient %d not found", id))
	}
	if r.Status != model.RecipientPending {
		return appErrors.NewState(r.Status, model.RecipientSent)
	}
	r.Status = model.RecipientSent
	r.RenderedSubject = subject
	r.RenderedBody = body
	r.ProviderMessageID = providerMessageID
	r.ErrorMsg = ""
	return nil
}

func (s *InMemoryStore) MarkRecipientError(id int, subject, body, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return appErrors.NewStore("mark recipient", fmt.Errorf("recipient %d not found", id))
	}
	if r.Status != model.RecipientPending {
		return appErrors.NewState(r.Status, model.RecipientError)
	}
	r.Status = model.RecipientError
	r.RenderedSubject = subject
	r.RenderedBody = body
	r.ErrorMsg = errMsg
	return nil
}

func (s *InMemoryStore) FinalizeJob(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return appErrors.NewStore("finalize", fmt.Errorf("job %d not found", id))
	}
	if j.Status != model.JobProcessing {
		return nil
	}
	pending, failed := 0, 0
	for _, r := range s.recipients {
		if r.JobID != id {
			continue
		}
		switch r.Status {
		case model.RecipientPending:
			pending++
		case model.RecipientError:
			failed++
		}
	}
	if pending > 0 {
		return nil
	}
	if failed > 0 {
		j.Status = model.JobError
		j.ErrorMsg = fmt.Sprintf("%d failed", failed)
	} else {
		j.Status = model.JobSent
		j.ErrorMsg = ""
	}
	return nil
}

func (s *InMemoryStore) FailJob(id int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return appErrors.NewStore("fail job", fmt.Errorf("job %d not found", id))
	}
	for _, r := range s.recipients {
		if r.JobID == id && r.Status == model.RecipientPending {
			r.Status = model.RecipientError
			r.ErrorMsg = errMsg
		}
	}
	if j.Status == model.JobProcessing {
		j.Status = model.JobError
		j.ErrorMsg = errMsg
	}
	return nil
}

// ---------- templates ----------

func (s *InMemoryStore) GetBySlug(slug string) (*model.MessageTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.templates[slug]; ok {
		c := *t
		return &c, nil
	}
	return nil, appErrors.NewTemplateNotFound(slug)
}

func (s *InMemoryStore) Create(t *model.MessageTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.Slug]; ok {
		return appErrors.NewStore("create template", fmt.Errorf("slug %q exists", t.Slug))
	}
	s.nextTmpl++
	t.ID = s.nextTmpl
	t.CreatedAt = time.Now()
	c := *t
	s.templates[t.Slug] = &c
	return nil
}

func (s *InMemoryStore) List() ([]*model.MessageTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.MessageTemplate{}
	for _, t := range s.templates {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Slug < out[k].Slug })
	return out, nil
}

// ---------- compliance ----------

func (s *InMemoryStore) Get(entityID int) (*model.ComplianceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.compliance[entityID]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryStore) Upsert(rec *model.ComplianceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	c.UpdatedAt = time.Now()
	s.compliance[rec.EntityID] = &c
	return nil
}

func (s *InMemoryStore) ListPastDeadline(now time.Time) ([]*model.ComplianceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.ComplianceRecord{}
	for _, rec := range s.compliance {
		if rec.DeadlineAt.Before(now) {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].EntityID < out[k].EntityID })
	return out, nil
}

func (s *InMemoryStore) Block(entityID int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.compliance[entityID]
	if !ok || rec.Blocked {
		return appErrors.NewState("blocked", "blocked")
	}
	rec.Blocked = true
	rec.BlockedReason = reason
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) ClearBlock(entityID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.compliance[entityID]
	if !ok || !rec.Blocked || !rec.Complete() {
		return appErrors.NewState("blocked", "compliant")
	}
	rec.Blocked = false
	rec.BlockedReason = ""
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) SetRequirements(entityID int, channelDone, channelVerified, riskmapDone, penalesDone bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.compliance[entityID]
	if !ok {
		return appErrors.NewStore("set requirements", fmt.Errorf("entity %d not found", entityID))
	}
	rec.ChannelDone = channelDone
	rec.ChannelVerified = channelVerified
	rec.RiskmapDone = riskmapDone
	rec.PenalesDone = penalesDone
	rec.UpdatedAt = time.Now()
	return nil
}

// ---------- grace timers ----------

func (s *InMemoryStore) GetTimer(entityID int) (*model.GraceTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.grace[entityID]; ok {
		c := *g
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryStore) UpsertTimer(timer *model.GraceTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *timer
	c.UpdatedAt = time.Now()
	s.grace[timer.EntityID] = &c
	return nil
}

func (s *InMemoryStore) ListInGrace() ([]*model.GraceTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.GraceTimer{}
	for _, g := range s.grace {
		if g.AccountStatus == model.AccountGracePeriod {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].EntityID < out[k].EntityID })
	return out, nil
}

func (s *InMemoryStore) StartGrace(entityID int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grace[entityID]
	if !ok || g.AccountStatus != model.AccountActive {
		return appErrors.NewState(model.AccountGracePeriod, model.AccountGracePeriod)
	}
	g.AccountStatus = model.AccountGracePeriod
	start := now
	g.GracePeriodStartDate = &start
	g.PaymentReminderSent = false
	g.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Suspend(entityID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grace[entityID]
	if !ok || g.AccountStatus != model.AccountGracePeriod {
		return appErrors.NewState(model.AccountSuspended, model.AccountSuspended)
	}
	g.AccountStatus = model.AccountSuspended
	g.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Reactivate(entityID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grace[entityID]
	if !ok || g.AccountStatus != model.AccountSuspended {
		return appErrors.NewState(model.AccountActive, model.AccountActive)
	}
	g.AccountStatus = model.AccountActive
	g.GracePeriodStartDate = nil
	g.PaymentReminderSent = false
	g.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) MarkPaymentReminderSent(entityID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.grace[entityID]; ok {
		g.PaymentReminderSent = true
		g.UpdatedAt = time.Now()
	}
	return nil
}

// ---------- entities ----------

func (s *InMemoryStore) GetByID(id int) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListAll() ([]*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Entity{}
	for _, e := range s.entities {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// AllJobs returns every job, ordered by id. Test helper.
func (s *InMemoryStore) AllJobs() []*model.MessageJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.MessageJob{}
	for _, j := range s.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *InMemoryStore) AddEntity(e *model.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.entities[e.ID] = &c
}

func copyJob(j *model.MessageJob) *model.MessageJob {
	c := *j
	return &c
}
