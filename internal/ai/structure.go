package ai

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/grant-cli/internal/amount"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/anthropic"
)

// Structurer extracts typed program fields from collected text.
type Structurer struct {
	*caller
	model     string
	maxTokens int64
}

// Structure returns a patch for merge-if-empty application.
func (s *Structurer) Structure(ctx context.Context, in model.EnrichInput) (*model.ProgramPatch, model.TokenUsage, error) {
	var b strings.Builder
	if in.Program != nil {
		b.WriteString("# " + in.Program.Title + "\n\n")
	}
	section := func(title, text string) {
		if strings.TrimSpace(text) != "" {
			b.WriteString("## " + title + "\n\n" + text + "\n\n")
		}
	}
	section("Listing record", in.RecordText)
	section("Detail page", in.CrawledText)
	section("Attachments", in.AttachmentText)

	system := anthropic.BuildCachedSystemBlocks(structurePrompt, "")
	text, usage, err := s.complete(ctx, "structure", s.model, s.maxTokens, system, b.String())
	if err != nil {
		return nil, usage, err
	}

	var patch model.ProgramPatch
	if err := decodeJSON("structure", text, &patch); err != nil {
		return nil, usage, err
	}
	normalizePatch(&patch)
	return &patch, usage, nil
}

// normalizePatch drops values the model was asked not to invent: malformed
// dates, negative amounts and empty list items.
func normalizePatch(p *model.ProgramPatch) {
	p.StartDate = validDate(p.StartDate)
	p.EndDate = validDate(p.EndDate)
	if p.MaxFunding < 0 {
		p.MaxFunding = 0
	}
	if p.MaxFunding == 0 {
		if v, ok := amount.Parse(p.SupportScale); ok {
			p.MaxFunding = v
		}
	}
	p.Eligibility = compact(p.Eligibility)
	p.RequiredDocuments = compact(p.RequiredDocuments)
	p.EvaluationCriteria = compact(p.EvaluationCriteria)
	for k, v := range p.Extra {
		if isBlank(v) {
			delete(p.Extra, k)
		}
	}
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}

func compact(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
