package model

import "time"

// Requirement names used in blocked_reason and notification bodies.
const (
	RequirementChannel = "canal de denuncias"
	RequirementRiskmap = "mapa de riesgos"
	RequirementPenales = "certificados penales"
)

// ComplianceRecord tracks an entity's onboarding requirements against its
// deadline. Blocked flips false to true only inside the compliance guard;
// true to false only through remediation with all three requirements done.
type ComplianceRecord struct {
	EntityID        int       `db:"entity_id" json:"entity_id"`
	DeadlineAt      time.Time `db:"deadline_at" json:"deadline_at"`
	ChannelDone     bool      `db:"channel_done" json:"channel_done"`
	ChannelVerified bool      `db:"channel_verified" json:"channel_verified"`
	RiskmapDone     bool      `db:"riskmap_done" json:"riskmap_done"`
	PenalesDone     bool      `db:"penales_done" json:"penales_done"`
	Blocked         bool      `db:"blocked" json:"blocked"`
	BlockedReason   string    `db:"blocked_reason" json:"blocked_reason,omitempty"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Unmet returns the names of the requirements still missing, in a fixed order
// so dedupe keys built from it are stable.
func (c *ComplianceRecord) Unmet() []string {
	var unmet []string
	if !c.ChannelDone {
		unmet = append(unmet, RequirementChannel)
	}
	if !c.RiskmapDone {
		unmet = append(unmet, RequirementRiskmap)
	}
	if !c.PenalesDone {
		unmet = append(unmet, RequirementPenales)
	}
	return unmet
}

// Complete reports whether all three blocking requirements are satisfied.
func (c *ComplianceRecord) Complete() bool {
	return c.ChannelDone && c.RiskmapDone && c.PenalesDone
}
