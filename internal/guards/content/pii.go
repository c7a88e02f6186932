package content

import (
	"context"
	"fmt"

	"github.com/ppiankov/guardchain/internal/model"
)

// PIIMode selects how detected PII is handled.
type PIIMode string

const (
	// PIIBlock denies submissions containing PII.
	PIIBlock PIIMode = "block"
	// PIIRedact rewrites detected spans with typed placeholders.
	PIIRedact PIIMode = "redact"
	// PIIFlag allows the data through, recording detections as evidence.
	PIIFlag PIIMode = "flag"
)

// PII detects emails, phone numbers, SSN-shaped ids, and credit card
// numbers (Luhn-validated).
type PII struct {
	mode PIIMode
}

// NewPII creates a PII guard with the given handling mode.
func NewPII(mode PIIMode) (*PII, error) {
	switch mode {
	case PIIBlock, PIIRedact, PIIFlag:
		return &PII{mode: mode}, nil
	}
	return nil, fmt.Errorf("content: unknown pii mode %q", mode)
}

func (g *PII) Name() string { return "pii" }

func (g *PII) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)

	redacted := text
	var kinds []string

	if emailPattern.MatchString(redacted) {
		kinds = append(kinds, "email")
		redacted = emailPattern.ReplaceAllString(redacted, "[EMAIL]")
	}
	for _, re := range creditCardPatterns {
		for _, match := range re.FindAllString(redacted, -1) {
			if luhnValid(match) {
				kinds = append(kinds, "credit_card")
				redacted = re.ReplaceAllString(redacted, "[CARD]")
				break
			}
		}
	}
	if ssnPattern.MatchString(redacted) {
		kinds = append(kinds, "ssn")
		redacted = ssnPattern.ReplaceAllString(redacted, "[SSN]")
	}
	for _, re := range phonePatterns {
		if re.MatchString(redacted) {
			kinds = append(kinds, "phone")
			redacted = re.ReplaceAllString(redacted, "[PHONE]")
			break
		}
	}

	evidence := map[string]any{
		"pii_types":       kinds,
		"detection_count": len(kinds),
	}

	if len(kinds) == 0 {
		return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	}

	reasons := []string{fmt.Sprintf("detected PII: %v", kinds)}
	switch g.mode {
	case PIIBlock:
		return model.Deny(data, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	case PIIRedact:
		return model.Transform(redacted, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	default:
		return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	}
}
