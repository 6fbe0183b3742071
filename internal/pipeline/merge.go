package pipeline

import (
	"strings"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
)

// mergePatch fills the empty fields of p from patch. Values already on p are
// never overwritten, so enrichment only ever adds information.
func mergePatch(p *model.Program, patch *model.ProgramPatch) {
	if patch == nil {
		return
	}
	src := cleanPatch(*patch)
	if src.Empty() {
		return
	}

	dst := patchOf(p)
	if err := mergo.Merge(&dst, src); err != nil {
		zap.L().Warn("pipeline: merge patch failed", zap.String("slug", p.Slug), zap.Error(err))
		return
	}
	applyPatch(p, dst)
}

// cleanPatch trims strings and drops blank list entries so whitespace never
// counts as a value.
func cleanPatch(in model.ProgramPatch) model.ProgramPatch {
	out := model.ProgramPatch{
		Operator:           strings.TrimSpace(in.Operator),
		SupportType:        strings.TrimSpace(in.SupportType),
		Region:             strings.TrimSpace(in.Region),
		StartDate:          strings.TrimSpace(in.StartDate),
		EndDate:            strings.TrimSpace(in.EndDate),
		SupportScale:       strings.TrimSpace(in.SupportScale),
		Budget:             strings.TrimSpace(in.Budget),
		Eligibility:        nonEmpty(in.Eligibility),
		TargetAudience:     strings.TrimSpace(in.TargetAudience),
		RequiredDocuments:  nonEmpty(in.RequiredDocuments),
		EvaluationCriteria: nonEmpty(in.EvaluationCriteria),
		Contact:            strings.TrimSpace(in.Contact),
	}
	if in.MaxFunding > 0 {
		out.MaxFunding = in.MaxFunding
	}
	for k, v := range in.Extra {
		if k == "" || v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra[k] = v
	}
	return out
}

func patchOf(p *model.Program) model.ProgramPatch {
	return model.ProgramPatch{
		Operator:           p.Operator,
		SupportType:        p.SupportType,
		Region:             p.Region,
		StartDate:          p.StartDate,
		EndDate:            p.EndDate,
		SupportScale:       p.SupportScale,
		Budget:             p.Budget,
		MaxFunding:         p.MaxFunding,
		Eligibility:        p.Eligibility,
		TargetAudience:     p.TargetAudience,
		RequiredDocuments:  p.RequiredDocuments,
		EvaluationCriteria: p.EvaluationCriteria,
		Contact:            p.Contact,
		Extra:              p.Extra,
	}
}

func applyPatch(p *model.Program, v model.ProgramPatch) {
	p.Operator = v.Operator
	p.SupportType = v.SupportType
	p.Region = v.Region
	p.StartDate = v.StartDate
	p.EndDate = v.EndDate
	p.SupportScale = v.SupportScale
	p.Budget = v.Budget
	p.MaxFunding = v.MaxFunding
	p.Eligibility = v.Eligibility
	p.TargetAudience = v.TargetAudience
	p.RequiredDocuments = v.RequiredDocuments
	p.EvaluationCriteria = v.EvaluationCriteria
	p.Contact = v.Contact
	p.Extra = v.Extra
}
