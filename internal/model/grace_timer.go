package model

import "time"

// Account statuses for the payment state machine. Suspended is terminal until
// a manual reactivation.
const (
	AccountActive      = "active"
	AccountGracePeriod = "grace_period"
	AccountSuspended   = "suspended"
)

// GracePeriodDays is the length of the payment grace window.
const GracePeriodDays = 7

// GraceTimer tracks an entity's payment-lapse state. The start date is set
// once per cycle when the account enters grace_period.
type GraceTimer struct {
	EntityID             int        `db:"entity_id" json:"entity_id"`
	AccountStatus        string     `db:"account_status" json:"account_status"`
	GracePeriodStartDate *time.Time `db:"grace_period_start_date" json:"grace_period_start_date,omitempty"`
	SecondPaymentStatus  string     `db:"second_payment_status" json:"second_payment_status,omitempty"`
	PaymentReminderSent  bool       `db:"payment_reminder_sent" json:"payment_reminder_sent"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// DaysRemaining returns how many grace days are left at now. Negative values
// mean the window already expired.
func (g *GraceTimer) DaysRemaining(now time.Time) int {
	if g.GracePeriodStartDate == nil {
		return GracePeriodDays
	}
	elapsed := int(now.Sub(*g.GracePeriodStartDate).Hours() / 24)
	return GracePeriodDays - elapsed
}
