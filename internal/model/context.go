package model

import "github.com/google/uuid"

// Context carries per-request metadata through a pipeline run.
// It is created once per validation call and owned by the caller;
// guards only read it.
type Context struct {
	AuditID  string
	Model    string
	UserRole string
	Purpose  string
	TraceID  string
	Seed     *int64
	Metadata map[string]any
}

// ContextOption customizes a Context at construction or copy time.
type ContextOption func(*Context)

func WithModel(model string) ContextOption {
	return func(c *Context) { c.Model = model }
}

func WithUserRole(role string) ContextOption {
	return func(c *Context) { c.UserRole = role }
}

func WithPurpose(purpose string) ContextOption {
	return func(c *Context) { c.Purpose = purpose }
}

func WithTraceID(id string) ContextOption {
	return func(c *Context) { c.TraceID = id }
}

func WithSeed(seed int64) ContextOption {
	return func(c *Context) { c.Seed = &seed }
}

func WithContextAuditID(id string) ContextOption {
	return func(c *Context) {
		if id != "" {
			c.AuditID = id
		}
	}
}

// WithMetadata merges the given keys into the context metadata.
// Existing keys are overwritten on collision.
func WithMetadata(md map[string]any) ContextOption {
	return func(c *Context) {
		for k, v := range md {
			c.Metadata[k] = v
		}
	}
}

// NewContext creates a Context with a generated audit id unless one is
// supplied via WithContextAuditID.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{Metadata: map[string]any{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.AuditID == "" {
		c.AuditID = uuid.NewString()
	}
	return c
}

// Copy returns a new Context with the given overrides applied.
// Metadata is merged, not replaced: keys present on the original survive
// unless an override sets them.
func (c *Context) Copy(opts ...ContextOption) *Context {
	dup := &Context{
		AuditID:  c.AuditID,
		Model:    c.Model,
		UserRole: c.UserRole,
		Purpose:  c.Purpose,
		TraceID:  c.TraceID,
		Seed:     c.Seed,
		Metadata: make(map[string]any, len(c.Metadata)),
	}
	for k, v := range c.Metadata {
		dup.Metadata[k] = v
	}
	for _, opt := range opts {
		opt(dup)
	}
	return dup
}
