package repository

import (
	"database/sql"

	"github.com/lib/pq"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
)

type TemplateRepositoryInterface interface {
	// GetBySlug loads a template or returns TemplateNotFoundError.
	GetBySlug(slug string) (*model.MessageTemplate, error)
	Create(t *model.MessageTemplate) error
	List() ([]*model.MessageTemplate, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)

func (r *TemplateRepository) GetBySlug(slug string) (*model.MessageTemplate, error) {
	query := `
        SELECT id, slug, subject_pattern, body_pattern, channel, variables, active, created_at
        FROM message_templates WHERE slug=$1
    `
	var t model.MessageTemplate
	err := r.DB.QueryRow(query, slug).Scan(
		&t.ID, &t.Slug, &t.SubjectPattern, &t.BodyPattern, &t.Channel,
		pq.Array(&t.Variables), &t.Active, &t.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewTemplateNotFound(slug)
		}
		return nil, appErrors.NewStore("get template", err)
	}
	return &t, nil
}

func (r *TemplateRepository) Create(t *model.MessageTemplate) error {
	query := `
        INSERT INTO message_templates (slug, subject_pattern, body_pattern, channel, variables, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING id, created_at
    `
	err := r.DB.QueryRow(query,
		t.Slug, t.SubjectPattern, t.BodyPattern, t.Channel, pq.Array(t.Variables), t.Active,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return appErrors.NewStore("create template", err)
	}
	return nil
}

func (r *TemplateRepository) List() ([]*model.MessageTemplate, error) {
	rows, err := r.DB.Query(`
        SELECT id, slug, subject_pattern, body_pattern, channel, variables, active, created_at
        FROM message_templates ORDER BY slug
    `)
	if err != nil {
		return nil, appErrors.NewStore("list templates", err)
	}
	defer rows.Close()

	templates := []*model.MessageTemplate{}
	for rows.Next() {
		t := &model.MessageTemplate{}
		if err := rows.Scan(
			&t.ID, &t.Slug, &t.SubjectPattern, &t.BodyPattern, &t.Channel,
			pq.Array(&t.Variables), &t.Active, &t.CreatedAt,
		); err != nil {
			return nil, appErrors.NewStore("scan template", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
