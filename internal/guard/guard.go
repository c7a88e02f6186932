package guard

import (
	"context"

	"github.com/ppiankov/guardchain/internal/model"
)

// Guard is a pluggable check/transform unit. A guard inspects the data,
// consults the request context, and returns a decision. Guards must not
// mutate the request context.
//
// Check takes a context.Context so a guard that waits on an external
// lookup can honor cancellation; a purely computational guard ignores it.
// Faults are reported through the error return and absorbed at the
// pipeline boundary, never propagated raw to the caller.
type Guard interface {
	Name() string
	Check(ctx context.Context, data any, rc *model.Context) (model.Decision, error)
}

// CheckFunc is the function form of a guard check.
type CheckFunc func(ctx context.Context, data any, rc *model.Context) (model.Decision, error)

// Func adapts a plain function into a Guard.
type Func struct {
	GuardName string
	Fn        CheckFunc
}

// New wraps fn as a named Guard.
func New(name string, fn CheckFunc) Func {
	return Func{GuardName: name, Fn: fn}
}

func (f Func) Name() string { return f.GuardName }

func (f Func) Check(ctx context.Context, data any, rc *model.Context) (model.Decision, error) {
	return f.Fn(ctx, data, rc)
}
