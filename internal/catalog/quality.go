package catalog

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/grant-cli/internal/model"
)

const richBodyRunes = 500

// Quality scores how complete a program record is, from 0 to 100. Weights
// favour the fields that matter most for screening and scoring.
func Quality(p *model.Program) int {
	score := 0
	add := func(ok bool, weight int) {
		if ok {
			score += weight
		}
	}

	add(filled(p.Title), 5)
	add(filled(p.Operator), 5)
	add(filled(p.SupportType), 5)
	add(filled(p.StartDate) || filled(p.EndDate), 10)
	add(filled(p.DetailURL), 5)
	add(p.MaxFunding > 0, 10)
	add(len(p.Eligibility) > 0, 15)
	add(len(p.RequiredDocuments) > 0, 10)
	add(len(p.EvaluationCriteria) > 0, 10)
	add(filled(p.TargetAudience), 10)
	add(filled(p.Contact), 5)
	add(utf8.RuneCountInString(strings.TrimSpace(p.Body)) > richBodyRunes, 10)

	return score
}

func filled(s string) bool { return strings.TrimSpace(s) != "" }
