package ai

import (
	"fmt"
	"strings"

	"github.com/sells-group/grant-cli/internal/model"
)

const screenPrompt = `You pre-screen Korean government support programs (지원사업 공고) for one operator.
Reject a program only when it clearly cannot apply to the operator: a different industry that is
explicitly required, a region restriction the operator does not meet, or a business stage the
operator is not in (예비창업자 only, 업력 7년 초과 only, etc.). When unsure, pass it.

Respond with ONLY valid JSON, no other text:
{"verdicts": [{"id": "<program id>", "pass": true, "reason": "short reason in Korean"}]}`

const structurePrompt = `You extract structured fields from a Korean government support program announcement.
Use only facts stated in the text. Leave a field out when the text does not state it.
Dates are YYYY-MM-DD. max_funding is the largest per-applicant support amount in KRW as an integer.
List fields hold short items, one requirement or document per item.

Respond with ONLY valid JSON, no other text:
{"operator": "", "support_type": "", "region": "", "start_date": "", "end_date": "",
 "support_scale": "", "budget": "", "max_funding": 0, "eligibility": [], "target_audience": "",
 "required_documents": [], "evaluation_criteria": [], "contact": "",
 "extra": {"keywords": [], "support_details": ""}}`

const scorePrompt = `You assess how well a Korean government support program fits the operator described below.
Score each dimension 0-100 with the given weight:
- eligibility (0.30): does the operator meet the stated requirements
- industry_fit (0.25): does the program target the operator's field
- funding_value (0.20): is the support meaningful for the operator's size
- feasibility (0.15): can the operator realistically prepare the documents and meet obligations
- timing (0.10): is the application window open and workable

Respond with ONLY valid JSON, no other text:
{"score": 0, "dimensions": [{"name": "eligibility", "weight": 0.3, "score": 0}],
 "strengths": [], "weaknesses": [], "key_actions": [], "summary": "two sentences in Korean"}`

const strategyPrompt = `You are a Korean grant consultant drafting an application strategy for the operator below.
Write Markdown in Korean with these sections: 지원 전략 요약, 핵심 평가 포인트 대응, 준비 서류 체크리스트,
사업계획서 작성 방향, 일정 계획, 리스크와 대응. Be concrete and grounded in the program text. Output only the document.`

// profileContext renders the operator profile as the cached system block.
func profileContext(p model.Profile) string {
	var b strings.Builder
	b.WriteString("## Operator profile\n")
	line := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	line("Name", p.Name)
	line("Industry", p.Industry)
	line("Region", p.Region)
	line("Business stage", p.Maturity)
	if p.Employees > 0 {
		line("Employees", fmt.Sprint(p.Employees))
	}
	line("Keywords", strings.Join(p.Keywords, ", "))
	line("Description", p.Description)
	return b.String()
}

// programBrief renders the known fields of a program for scoring and strategy.
func programBrief(p *model.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	field := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	list := func(k string, items []string) {
		if len(items) > 0 {
			fmt.Fprintf(&b, "- %s: %s\n", k, strings.Join(items, "; "))
		}
	}
	field("Operator", p.Operator)
	field("Support type", p.SupportType)
	field("Region", p.Region)
	if p.StartDate != "" || p.EndDate != "" {
		field("Application period", p.StartDate+" ~ "+p.EndDate)
	}
	field("Support scale", p.SupportScale)
	if p.MaxFunding > 0 {
		field("Max funding (KRW)", fmt.Sprint(p.MaxFunding))
	}
	field("Budget", p.Budget)
	field("Target audience", p.TargetAudience)
	list("Eligibility", p.Eligibility)
	list("Required documents", p.RequiredDocuments)
	list("Evaluation criteria", p.EvaluationCriteria)
	if body := strings.TrimSpace(p.Body); body != "" {
		b.WriteString("\n## Announcement\n\n")
		b.WriteString(truncate(body, maxBodyRunes))
		b.WriteString("\n")
	}
	return b.String()
}

const maxBodyRunes = 12000

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
