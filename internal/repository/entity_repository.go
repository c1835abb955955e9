package repository

import (
	"database/sql"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
	"github.com/ramonsune/custodia-360-sub009/internal/model"
)

// EntityRepositoryInterface exposes the contact addresses and anchor dates the
// sweeps need.
type EntityRepositoryInterface interface {
	GetByID(id int) (*model.Entity, error)
	ListAll() ([]*model.Entity, error)
}

type EntityRepository struct {
	DB *sql.DB
}

var _ EntityRepositoryInterface = (*EntityRepository)(nil)

func (r *EntityRepository) GetByID(id int) (*model.Entity, error) {
	query := `
        SELECT id, name, contractor_email, delegate_email, contract_start_date
        FROM entities WHERE id=$1
    `
	var e model.Entity
	err := r.DB.QueryRow(query, id).Scan(
		&e.ID, &e.Name, &e.ContractorEmail, &e.DelegateEmail, &e.ContractStartDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.NewStore("get entity", err)
	}
	return &e, nil
}

func (r *EntityRepository) ListAll() ([]*model.Entity, error) {
	rows, err := r.DB.Query(`
        SELECT id, name, contractor_email, delegate_email, contract_start_date
        FROM entities ORDER BY id
    `)
	if err != nil {
		return nil, appErrors.NewStore("list entities", err)
	}
	defer rows.Close()

	entities := []*model.Entity{}
	for rows.Next() {
		e := &model.Entity{}
		if err := rows.Scan(
			&e.ID, &e.Name, &e.ContractorEmail, &e.DelegateEmail, &e.ContractStartDate,
		); err != nil {
			return nil, appErrors.NewStore("scan entity", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
