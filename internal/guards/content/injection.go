package content

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ppiankov/guardchain/internal/model"
)

// injectionCategory groups related prompt-injection shapes with a
// confidence weight. The triggered confidence is the maximum weight
// among matched categories.
type injectionCategory struct {
	name     string
	weight   float64
	patterns []*regexp.Regexp
}

var injectionCategories = []injectionCategory{
	{
		name:   "instruction_override",
		weight: 1.0,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+all\s+previous\s+instructions`),
			regexp.MustCompile(`(?i)(?:ignore|forget|disregard)\s+(?:previous|prior|above|earlier)\s+(?:instructions|prompts|rules|commands)`),
			regexp.MustCompile(`(?i)(?:override|bypass|ignore|skip|disable)\s+(?:safety|security|restrictions|filters)`),
			regexp.MustCompile(`(?i)(?:disable|turn off|remove)\s+(?:guardrails|safety|security)`),
		},
	},
	{
		name:   "role_manipulation",
		weight: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:you are now|from now on|starting now)\s+(?:a|an|acting as)`),
			regexp.MustCompile(`(?i)(?:pretend|act|behave|respond)\s+(?:as if|like|that)\s+(?:you are|you're)`),
			regexp.MustCompile(`(?i)(?:system|admin|developer)\s+(?:mode|access|override|bypass)`),
		},
	},
	{
		name:   "jailbreak",
		weight: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:DAN|do anything now|developer mode|god mode)\b`),
			regexp.MustCompile(`(?i)(?:for educational|for research|for academic)\s+(?:purposes|reasons)`),
		},
	},
}

// InjectionConfig tunes the prompt-injection detector.
type InjectionConfig struct {
	// Threshold is the minimum confidence that triggers the action.
	Threshold float64
	// Block denies on detection; false records evidence only.
	Block bool
}

// Injection detects prompt-injection and jailbreak phrasing.
type Injection struct {
	cfg InjectionConfig
}

// NewInjection creates a prompt-injection guard.
func NewInjection(cfg InjectionConfig) (*Injection, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("content: injection threshold must be in [0,1], got %g", cfg.Threshold)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.7
	}
	return &Injection{cfg: cfg}, nil
}

func (g *Injection) Name() string { return "prompt_injection" }

func (g *Injection) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)

	var matched []string
	confidence := 0.0
	for _, cat := range injectionCategories {
		for _, re := range cat.patterns {
			if re.MatchString(text) {
				matched = append(matched, cat.name)
				if cat.weight > confidence {
					confidence = cat.weight
				}
				break
			}
		}
	}

	evidence := map[string]any{
		"categories_matched":   matched,
		"confidence_score":     confidence,
		"confidence_threshold": g.cfg.Threshold,
	}

	if confidence >= g.cfg.Threshold && len(matched) > 0 {
		reasons := []string{fmt.Sprintf("prompt injection detected (confidence: %.2f)", confidence)}
		if g.cfg.Block {
			return model.Deny(data, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
		}
	}
	return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
}
