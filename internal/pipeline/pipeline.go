package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/guardchain/internal/audit"
	"github.com/ppiankov/guardchain/internal/guard"
	"github.com/ppiankov/guardchain/internal/model"
)

// ErrorPolicy selects how a guard execution fault is absorbed.
type ErrorPolicy string

const (
	// ErrDeny converts any guard fault into an immediate deny.
	ErrDeny ErrorPolicy = "deny"
	// ErrAllow skips the failing guard and continues with unchanged data.
	ErrAllow ErrorPolicy = "allow"
	// ErrContinue likewise skips the failing guard; it differs from
	// ErrAllow only in intent (the fault is still recorded as a reason).
	ErrContinue ErrorPolicy = "continue"
)

// Valid reports whether p is a known error policy.
func (p ErrorPolicy) Valid() bool {
	switch p {
	case ErrDeny, ErrAllow, ErrContinue:
		return true
	}
	return false
}

// Pipeline runs an ordered chain of guards against input data and
// aggregates their outcomes into one decision. Guard execution within a
// single Validate call is strictly sequential: later guards observe the
// output of earlier transforms.
type Pipeline struct {
	name       string
	guards     []guard.Guard
	failFast   bool
	onError    ErrorPolicy
	strictDeny bool
	auditLog   *audit.Log
}

// Option customizes a Pipeline at construction time.
type Option func(*Pipeline)

// WithFailFast controls whether the pipeline stops at the first deny or
// retry outcome. Default true.
func WithFailFast(v bool) Option {
	return func(p *Pipeline) { p.failFast = v }
}

// WithOnError sets the fault absorption policy. Default ErrDeny.
func WithOnError(policy ErrorPolicy) Option {
	return func(p *Pipeline) { p.onError = policy }
}

// WithStrictDeny makes the final synthesis return deny when any guard
// denied, even with fail-fast off. The default (off) preserves the
// historical behavior where a mid-chain deny under failFast=false is
// downgraded to allow.
func WithStrictDeny(v bool) Option {
	return func(p *Pipeline) { p.strictDeny = v }
}

// WithAuditLog records every final decision to the given audit log.
func WithAuditLog(log *audit.Log) Option {
	return func(p *Pipeline) { p.auditLog = log }
}

// New creates a pipeline. An empty name or guard list is a configuration
// error, reported here so misconfiguration surfaces before traffic flows.
func New(name string, guards []guard.Guard, opts ...Option) (*Pipeline, error) {
	if name == "" {
		return nil, fmt.Errorf("pipeline: name must not be empty")
	}
	if len(guards) == 0 {
		return nil, fmt.Errorf("pipeline %q: must have at least one guard", name)
	}
	p := &Pipeline{
		name:     name,
		guards:   append([]guard.Guard(nil), guards...),
		failFast: true,
		onError:  ErrDeny,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.onError.Valid() {
		return nil, fmt.Errorf("pipeline %q: unknown error policy %q", name, p.onError)
	}
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Steps returns the number of guards in the chain.
func (p *Pipeline) Steps() int { return len(p.guards) }

// Validate runs data through the guard chain and returns the aggregated
// decision. A nil request context gets a fresh one. Guard faults are
// absorbed per the onError/failFast policies; the caller always receives
// a well-formed decision.
func (p *Pipeline) Validate(ctx context.Context, data any, rc *model.Context) model.Decision {
	if rc == nil {
		rc = model.NewContext()
	}

	current := data
	reasons := []string{}
	evidence := map[string]any{}
	transforms := 0
	denied := false

	for _, g := range p.guards {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, fmt.Sprintf("validation cancelled before guard %s: %v", g.Name(), err))
			return p.finish(model.Deny(current, reasons,
				model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)))
		}

		decision, err := p.runGuard(ctx, g, current, rc)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("guard %s failed: %v", g.Name(), err))
			if p.onError == ErrDeny || p.failFast {
				return p.finish(model.Deny(current, reasons,
					model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)))
			}
			// ErrAllow and ErrContinue both skip to the next guard
			// with the data unchanged.
			continue
		}

		reasons = append(reasons, decision.Reasons...)
		for k, v := range decision.Evidence {
			evidence[k] = v
		}

		switch decision.Action {
		case model.ActionDeny:
			denied = true
			if p.failFast {
				return p.finish(model.Deny(current, reasons,
					model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)))
			}
		case model.ActionTransform:
			current = decision.Output
			transforms++
		case model.ActionRetry:
			if p.failFast {
				return p.finish(model.Retry(current, reasons,
					model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)))
			}
		}
	}

	return p.finish(p.synthesize(current, reasons, evidence, transforms, denied, rc))
}

// synthesize builds the final decision after every guard ran.
// Precedence: strict deny (opt-in) > transform > allow. A transform
// anywhere in the chain yields a transform decision even when a later
// guard objected softly.
func (p *Pipeline) synthesize(current any, reasons []string, evidence map[string]any, transforms int, denied bool, rc *model.Context) model.Decision {
	if p.strictDeny && denied {
		return model.Deny(current, reasons,
			model.WithAuditID(rc.AuditID), model.WithEvidence(evidence))
	}
	if transforms > 0 {
		if len(reasons) == 0 {
			reasons = []string{fmt.Sprintf("applied %d transformation(s)", transforms)}
		}
		return model.Transform(current, reasons,
			model.WithAuditID(rc.AuditID), model.WithEvidence(evidence))
	}
	return model.Allow(current,
		model.WithAuditID(rc.AuditID), model.WithEvidence(evidence))
}

// runGuard invokes one guard, converting a panic into a fault so a
// misbehaving guard can never terminate the pipeline call abnormally.
func (p *Pipeline) runGuard(ctx context.Context, g guard.Guard, data any, rc *model.Context) (decision model.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return g.Check(ctx, data, rc)
}

func (p *Pipeline) finish(d model.Decision) model.Decision {
	if p.auditLog != nil {
		// Audit write failures must not affect the decision.
		_ = p.auditLog.Record(audit.Entry{
			AuditID:  d.AuditID,
			Pipeline: p.name,
			Action:   string(d.Action),
			Allowed:  d.Allowed,
			Reasons:  d.Reasons,
		})
	}
	return d
}
