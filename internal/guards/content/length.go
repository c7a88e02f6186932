// Package content holds the stateless pattern guards: pure functions
// over (data, context) with no shared state between checks.
package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/guardchain/internal/model"
)

// LengthConfig bounds text size. Zero values disable a bound.
type LengthConfig struct {
	MinChars  int
	MaxChars  int
	MaxTokens int
}

// Length validates character and token counts.
type Length struct {
	cfg LengthConfig
}

// NewLength creates a length guard, rejecting inconsistent bounds.
func NewLength(cfg LengthConfig) (*Length, error) {
	if cfg.MinChars < 0 || cfg.MaxChars < 0 || cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("content: length bounds must be non-negative")
	}
	if cfg.MaxChars > 0 && cfg.MinChars > cfg.MaxChars {
		return nil, fmt.Errorf("content: min chars %d greater than max chars %d", cfg.MinChars, cfg.MaxChars)
	}
	return &Length{cfg: cfg}, nil
}

func (g *Length) Name() string { return "length" }

func (g *Length) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)
	chars := len(text)

	evidence := map[string]any{"char_count": chars}

	var reasons []string
	if g.cfg.MinChars > 0 && chars < g.cfg.MinChars {
		reasons = append(reasons, fmt.Sprintf("text too short: length %d < %d characters", chars, g.cfg.MinChars))
	}
	if g.cfg.MaxChars > 0 && chars > g.cfg.MaxChars {
		reasons = append(reasons, fmt.Sprintf("text too long: length %d > %d characters", chars, g.cfg.MaxChars))
	}
	if g.cfg.MaxTokens > 0 {
		tokens := len(strings.Fields(text))
		evidence["token_count"] = tokens
		if tokens > g.cfg.MaxTokens {
			reasons = append(reasons, fmt.Sprintf("too many tokens: %d > %d", tokens, g.cfg.MaxTokens))
		}
	}

	if len(reasons) > 0 {
		return model.Deny(data, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	}
	return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
}

func stringify(data any) string {
	if s, ok := data.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", data)
}
