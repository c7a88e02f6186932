package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/guardchain/internal/model"
)

// ProfanityAction selects how flagged words are handled.
type ProfanityAction string

const (
	ProfanityBlock ProfanityAction = "block"
	ProfanityMask  ProfanityAction = "mask"
	ProfanityFlag  ProfanityAction = "flag"
)

var defaultProfanity = map[string]struct{}{
	"damn": {}, "hell": {}, "crap": {}, "ass": {}, "bastard": {},
	"bitch": {}, "shit": {}, "fuck": {}, "piss": {},
}

// leetMap undoes common letter substitutions before matching.
var leetMap = strings.NewReplacer(
	"0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t", "@", "a", "$", "s",
)

// Profanity detects wordlist hits, tolerating leet-speak spellings.
type Profanity struct {
	action ProfanityAction
	words  map[string]struct{}
}

// NewProfanity creates a profanity guard. Extra words extend the
// built-in list.
func NewProfanity(action ProfanityAction, extra ...string) (*Profanity, error) {
	switch action {
	case ProfanityBlock, ProfanityMask, ProfanityFlag:
	default:
		return nil, fmt.Errorf("content: unknown profanity action %q", action)
	}
	words := make(map[string]struct{}, len(defaultProfanity)+len(extra))
	for w := range defaultProfanity {
		words[w] = struct{}{}
	}
	for _, w := range extra {
		words[strings.ToLower(w)] = struct{}{}
	}
	return &Profanity{action: action, words: words}, nil
}

func (g *Profanity) Name() string { return "profanity" }

func (g *Profanity) Check(_ context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := stringify(data)

	fields := strings.Fields(text)
	var hits []string  // canonical words, for evidence
	var spans []string // matched tokens as they appear, for masking
	for _, f := range fields {
		cleaned := strings.ToLower(strings.Trim(f, `.,!?;:"'()`))
		if cleaned == "" {
			continue
		}
		normalized := leetMap.Replace(cleaned)
		if _, ok := g.words[cleaned]; ok {
			hits = append(hits, cleaned)
			spans = append(spans, cleaned)
		} else if _, ok := g.words[normalized]; ok {
			hits = append(hits, normalized)
			spans = append(spans, cleaned)
		}
	}

	evidence := map[string]any{"detection_count": len(hits)}

	if len(hits) == 0 {
		return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	}

	reasons := []string{fmt.Sprintf("detected %d profanity instance(s)", len(hits))}
	switch g.action {
	case ProfanityBlock:
		return model.Deny(data, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	case ProfanityMask:
		masked := text
		for _, span := range spans {
			masked = maskWord(masked, span)
		}
		return model.Transform(masked, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	default:
		return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
	}
}

// maskWord replaces case-insensitive occurrences of word with
// asterisks of the same length.
func maskWord(text, word string) string {
	lower := strings.ToLower(text)
	stars := strings.Repeat("*", len(word))
	var b strings.Builder
	i := 0
	for {
		j := strings.Index(lower[i:], word)
		if j < 0 {
			b.WriteString(text[i:])
			return b.String()
		}
		b.WriteString(text[i : i+j])
		b.WriteString(stars)
		i += j + len(word)
	}
}
