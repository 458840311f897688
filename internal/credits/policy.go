package credits

// Operation identifies a billable action.
type Operation string

const (
	OpGenerate        Operation = "generate"
	OpPromptSynthesis Operation = "prompt_synthesis"
	OpEdit            Operation = "edit"
)

// Policy states what balance an operation requires up front and what it
// charges once its billable step has happened. The thresholds differ per
// operation and are deliberately kept in one table so they stay auditable.
type Policy struct {
	// Required is the minimum balance checked before the operation runs
	// (balance >= Required). When ExclusiveZero is set the check is
	// balance > 0 instead, matching the per-endpoint thresholds.
	Required      float64
	ExclusiveZero bool
	Charge        float64
}

var policies = map[Operation]Policy{
	// Full generation: any positive balance admits the request; the
	// submission itself costs half a credit, charged right after the job
	// is accepted. Charging on submission (not completion) is intentional:
	// an attempt is billable.
	OpGenerate: {ExclusiveZero: true, Charge: 0.5},

	// Synthesizing a prompt with the text model costs another half credit,
	// charged only when the external call actually succeeded.
	OpPromptSynthesis: {Required: 0.5, Charge: 0.5},

	// Edits admit any positive balance but charge a full credit, and only
	// after the edited image has been produced and persisted.
	OpEdit: {ExclusiveZero: true, Charge: 1},
}

// For returns the policy for op.
func For(op Operation) Policy {
	return policies[op]
}

// Allows reports whether balance satisfies the operation's threshold.
func (p Policy) Allows(balance float64) bool {
	if p.ExclusiveZero {
		return balance > 0
	}
	return balance >= p.Required
}
