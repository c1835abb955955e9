package model

import "time"

// Entity is an onboarded organization. Contractor and delegate addresses are
// the notification targets for guard and enforcer sweeps; the contract start
// date anchors the reminder scheduler.
type Entity struct {
	ID                int       `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	ContractorEmail   string    `db:"contractor_email" json:"contractor_email"`
	DelegateEmail     string    `db:"delegate_email" json:"delegate_email"`
	ContractStartDate time.Time `db:"contract_start_date" json:"contract_start_date"`
}
