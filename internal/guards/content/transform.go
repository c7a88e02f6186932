package content

import (
	"context"
	"strings"

	"github.com/ppiankov/guardchain/internal/model"
)

// Uppercase rewrites text to upper case. Mostly useful for exercising
// transform chaining and for canonicalizing code-like payloads.
type Uppercase struct{}

func NewUppercase() *Uppercase { return &Uppercase{} }

func (g *Uppercase) Name() string { return "uppercase" }

func (g *Uppercase) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)
	upper := strings.ToUpper(text)
	if upper == text {
		return model.Allow(data, model.WithAuditID(rc.AuditID)), nil
	}
	return model.Transform(upper, []string{"upper-cased text"}, model.WithAuditID(rc.AuditID)), nil
}

// Prefix prepends a fixed marker to the text.
type Prefix struct {
	prefix string
}

func NewPrefix(prefix string) *Prefix { return &Prefix{prefix: prefix} }

func (g *Prefix) Name() string { return "prefix" }

func (g *Prefix) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)
	return model.Transform(g.prefix+text, []string{"prefixed text"}, model.WithAuditID(rc.AuditID)), nil
}
