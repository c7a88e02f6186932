package model

import "github.com/google/uuid"

// Action is the outcome category of a guard or pipeline decision.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionDeny      Action = "deny"
	ActionTransform Action = "transform"
	ActionRetry     Action = "retry"
)

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionDeny, ActionTransform, ActionRetry:
		return true
	}
	return false
}

// Decision is the result of a guard check or a full pipeline run.
// Decisions are values: constructed once via the factory functions and
// never mutated afterwards. Allowed is true iff the action is allow or
// transform.
type Decision struct {
	Allowed  bool           `json:"allowed"`
	Action   Action         `json:"action"`
	Reasons  []string       `json:"reasons"`
	Evidence map[string]any `json:"evidence"`
	Output   any            `json:"output"`
	AuditID  string         `json:"audit_id"`
}

// DecisionOption customizes a decision at construction time.
type DecisionOption func(*Decision)

// WithEvidence attaches structured diagnostic data to the decision.
func WithEvidence(evidence map[string]any) DecisionOption {
	return func(d *Decision) {
		if evidence != nil {
			d.Evidence = evidence
		}
	}
}

// WithAuditID correlates the decision with an existing audit id
// instead of generating a fresh one.
func WithAuditID(id string) DecisionOption {
	return func(d *Decision) {
		if id != "" {
			d.AuditID = id
		}
	}
}

// Allow creates an allow decision passing output through unchanged.
func Allow(output any, opts ...DecisionOption) Decision {
	return newDecision(true, ActionAllow, nil, output, opts)
}

// Deny creates a deny decision with the given reasons.
func Deny(output any, reasons []string, opts ...DecisionOption) Decision {
	return newDecision(false, ActionDeny, reasons, output, opts)
}

// Transform creates a transform decision carrying the transformed output.
func Transform(transformed any, reasons []string, opts ...DecisionOption) Decision {
	return newDecision(true, ActionTransform, reasons, transformed, opts)
}

// Retry creates a retry decision asking the caller to resubmit.
func Retry(output any, reasons []string, opts ...DecisionOption) Decision {
	return newDecision(false, ActionRetry, reasons, output, opts)
}

func newDecision(allowed bool, action Action, reasons []string, output any, opts []DecisionOption) Decision {
	d := Decision{
		Allowed:  allowed,
		Action:   action,
		Reasons:  reasons,
		Evidence: map[string]any{},
		Output:   output,
	}
	if d.Reasons == nil {
		d.Reasons = []string{}
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.AuditID == "" {
		d.AuditID = uuid.NewString()
	}
	return d
}
