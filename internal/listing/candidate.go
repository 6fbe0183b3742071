package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/scrape"
)

// Candidate fields a source can map.
const (
	FieldName              = "name"
	FieldOperator          = "operator"
	FieldSupportType       = "support_type"
	FieldRegion            = "region"
	FieldStartDate         = "start_date"
	FieldEndDate           = "end_date"
	FieldPeriod            = "period" // "start ~ end" in one value
	FieldSupportScale      = "support_scale"
	FieldBudget            = "budget"
	FieldDetailURL         = "detail_url"
	FieldSourceID          = "source_id"
	FieldDescription       = "description"
	FieldEligibility       = "eligibility"
	FieldTargetAudience    = "target_audience"
	FieldRequiredDocuments = "required_documents"
	FieldAttachmentURLs    = "attachment_urls"
)

var knownFields = map[string]bool{
	FieldName: true, FieldOperator: true, FieldSupportType: true, FieldRegion: true,
	FieldStartDate: true, FieldEndDate: true, FieldPeriod: true, FieldSupportScale: true,
	FieldBudget: true, FieldDetailURL: true, FieldSourceID: true, FieldDescription: true,
	FieldEligibility: true, FieldTargetAudience: true, FieldRequiredDocuments: true,
	FieldAttachmentURLs: true,
}

func knownField(name string) bool { return knownFields[name] }

// Record is one source row keyed by source field name.
type Record map[string]string

var (
	dateRe    = regexp.MustCompile(`(20\d{2})\s*[.\-/년]\s*(\d{1,2})\s*[.\-/월]\s*(\d{1,2})`)
	compactRe = regexp.MustCompile(`\b(20\d{2})(\d{2})(\d{2})\b`)
	listSepRe = regexp.MustCompile(`\s*(?:\n|;|,\s)\s*`)
	markupRe  = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
)

// toCandidate maps a record through fields. Records without a name are
// dropped by returning false.
func toCandidate(source string, fields map[string]string, rec Record) (model.Candidate, bool) {
	get := func(field string) string {
		key, ok := fields[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(rec[key])
	}

	c := model.Candidate{
		Name:           collapse(plainText(get(FieldName))),
		Operator:       get(FieldOperator),
		SupportType:    get(FieldSupportType),
		Region:         get(FieldRegion),
		StartDate:      normalizeDate(get(FieldStartDate)),
		EndDate:        normalizeDate(get(FieldEndDate)),
		SupportScale:   get(FieldSupportScale),
		Budget:         get(FieldBudget),
		DetailURL:      get(FieldDetailURL),
		Source:         source,
		SourceID:       get(FieldSourceID),
		Description:    plainText(get(FieldDescription)),
		TargetAudience: plainText(get(FieldTargetAudience)),
	}
	if c.Name == "" {
		return model.Candidate{}, false
	}
	if c.StartDate == "" && c.EndDate == "" {
		c.StartDate, c.EndDate = splitPeriod(get(FieldPeriod))
	}
	c.Eligibility = splitList(plainText(get(FieldEligibility)))
	c.RequiredDocuments = splitList(plainText(get(FieldRequiredDocuments)))
	for _, u := range strings.Fields(get(FieldAttachmentURLs)) {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			c.AttachmentURLs = append(c.AttachmentURLs, u)
		}
	}
	return c, true
}

// normalizeDate turns "2024.3.4", "2024년 3월 4일" or "20240304" into
// 2024-03-04. Unrecognized values are returned trimmed.
func normalizeDate(s string) string {
	if m := dateRe.FindStringSubmatch(s); m != nil {
		return isoDate(m[1], m[2], m[3])
	}
	if m := compactRe.FindStringSubmatch(s); m != nil {
		return isoDate(m[1], m[2], m[3])
	}
	return strings.TrimSpace(s)
}

func isoDate(y, m, d string) string {
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return fmt.Sprintf("%s-%02d-%02d", y, month, day)
}

// splitPeriod reads the first two dates of a "start ~ end" value.
func splitPeriod(s string) (string, string) {
	var dates []string
	for _, m := range dateRe.FindAllStringSubmatch(s, 2) {
		dates = append(dates, isoDate(m[1], m[2], m[3]))
	}
	if len(dates) < 2 {
		for _, m := range compactRe.FindAllStringSubmatch(s, 2) {
			dates = append(dates, isoDate(m[1], m[2], m[3]))
		}
	}
	switch len(dates) {
	case 0:
		return "", ""
	case 1:
		return "", dates[0]
	default:
		return dates[0], dates[1]
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range listSepRe.Split(s, -1) {
		part = strings.TrimLeft(strings.TrimSpace(part), "-•*○◦▪ ")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// plainText strips markup from feed descriptions, which often carry HTML.
func plainText(s string) string {
	if !markupRe.MatchString(s) {
		return s
	}
	page, err := scrape.ParseHTML([]byte(s), nil)
	if err != nil {
		return s
	}
	return page.Text
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
