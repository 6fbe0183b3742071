package catalog

import (
	"github.com/sells-group/grant-cli/internal/amount"
	"github.com/sells-group/grant-cli/internal/model"
)

// BackfillFunding fills max_funding from the free-text amount fields of records
// written before the numeric field existed. Sources are tried in order:
// support_scale, budget, body. It reports whether the program changed.
func BackfillFunding(p *model.Program) bool {
	if p.MaxFunding > 0 {
		return false
	}
	for _, text := range []string{p.SupportScale, p.Budget, p.Body} {
		if v, ok := amount.Parse(text); ok {
			p.MaxFunding = v
			return true
		}
	}
	return false
}
