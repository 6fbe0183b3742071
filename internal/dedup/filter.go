package dedup

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/grant-cli/internal/model"
)

// Filter reason codes.
const (
	ReasonMaturityMismatch = "maturity_mismatch"
	ReasonRegionMismatch   = "region_mismatch"
)

// Rules are the keyword heuristics that decide whether a program is out of
// scope for the operator. False positives are accepted.
type Rules struct {
	// Maturity is the operator's business-maturity category, e.g. "early".
	Maturity string
	// MaturityPatterns maps each maturity category to title keywords that
	// mark a program as targeting that category.
	MaturityPatterns map[string][]string
	// Region is the operator's region.
	Region string
	// KnownRegions lists region names the region rule recognizes.
	KnownRegions []string
	// NationalMarkers mark a program as open to every region.
	NationalMarkers []string
}

// DefaultMaturityPatterns covers the Korean startup-stage vocabulary.
var DefaultMaturityPatterns = map[string][]string{
	"pre":    {"예비창업", "예비 창업", "pre-startup", "pre-founder"},
	"early":  {"초기창업", "초기 창업", "창업 3년", "early-stage"},
	"growth": {"창업도약", "도약기", "scale-up", "scaleup", "성장기"},
	"mature": {"중견기업", "수출유망", "글로벌 강소"},
}

// DefaultKnownRegions lists the Korean metropolitan and provincial regions.
var DefaultKnownRegions = []string{
	"서울", "부산", "대구", "인천", "광주", "대전", "울산", "세종",
	"경기", "강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주",
}

// DefaultNationalMarkers mark nationwide programs.
var DefaultNationalMarkers = []string{"전국", "national", "nationwide", "중앙", "전 지역"}

// Check reports whether p should be dropped and why.
func (r Rules) Check(p *model.Program) (bool, string) {
	if r.maturityMismatch(p) {
		return true, ReasonMaturityMismatch
	}
	if r.regionMismatch(p) {
		return true, ReasonRegionMismatch
	}
	return false, ""
}

// maturityMismatch drops a program whose title names maturity categories, none
// of which is the operator's.
func (r Rules) maturityMismatch(p *model.Program) bool {
	own := strings.ToLower(strings.TrimSpace(r.Maturity))
	if own == "" || len(r.MaturityPatterns) == 0 {
		return false
	}
	text := fold(p.Title + " " + p.SupportType)

	matched := false
	for category, patterns := range r.MaturityPatterns {
		if !containsAny(text, patterns) {
			continue
		}
		if strings.ToLower(category) == own {
			return false
		}
		matched = true
	}
	return matched
}

// regionMismatch drops a program explicitly scoped to known regions that
// exclude the operator's, unless it is marked nationwide.
func (r Rules) regionMismatch(p *model.Program) bool {
	own := fold(r.Region)
	if own == "" || len(r.KnownRegions) == 0 {
		return false
	}

	candidates := bracketTags(p.Title)
	if strings.TrimSpace(p.Region) != "" {
		candidates = append([]string{p.Region}, candidates...)
	}

	scoped := false
	for _, c := range candidates {
		c = fold(c)
		if containsAny(c, r.NationalMarkers) {
			return false
		}
		for _, known := range r.KnownRegions {
			k := fold(known)
			if k == "" || !strings.Contains(c, k) {
				continue
			}
			if strings.Contains(own, k) || strings.Contains(k, own) {
				return false
			}
			scoped = true
		}
	}
	return scoped
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if p = fold(p); p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
