package content

import (
	"context"
	"fmt"

	"github.com/ppiankov/guardchain/internal/model"
)

// Secrets detects API keys, tokens, and password assignments and masks
// them in place. Detection always transforms: leaked credentials must
// not pass through unmodified.
type Secrets struct{}

// NewSecrets creates a secret masking guard.
func NewSecrets() *Secrets { return &Secrets{} }

func (g *Secrets) Name() string { return "secret_mask" }

func (g *Secrets) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)

	masked := text
	var kinds []string
	count := 0

	for _, sp := range secretPatterns {
		matches := sp.re.FindAllString(masked, -1)
		if len(matches) == 0 {
			continue
		}
		count += len(matches)
		kinds = append(kinds, sp.kind)
		masked = sp.re.ReplaceAllString(masked, "[MASKED:"+sp.kind+"]")
	}

	evidence := map[string]any{
		"detection_count": count,
		"secret_types":    kinds,
	}

	if count == 0 {
		return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	}

	return model.Transform(masked,
		[]string{fmt.Sprintf("detected %d secret(s)", count)},
		model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
}
