// internal/sweep/sweep.go
package sweep

// Result summarizes one sweep invocation: how many records were examined and
// what was done to them. Sweeps are stateless between runs; everything they
// decide is derivable from the store plus the injected now.
type Result struct {
	Processed int      `json:"processed"`
	Actions   []string `json:"actions"`
}

func (r *Result) add(action string) {
	r.Actions = append(r.Actions, action)
}

// Template slugs the sweeps enqueue against. The seeder installs them.
const (
	TemplateComplianceBlocked  = "entidad-bloqueada"
	TemplateOnboardingReminder = "recordatorio-onboarding"
	TemplateBillingReminder    = "recordatorio-facturacion"
	TemplateGraceUrgent        = "pago-urgente"
	TemplateSuspended          = "cuenta-suspendida"
)
