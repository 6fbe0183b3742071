package model

import "time"

// Collection names in the document store.
const (
	CollectionPrograms     = "programs"
	CollectionAnalysis     = "analysis"
	CollectionStrategies   = "strategies"
	CollectionApplications = "applications"
	CollectionAttachments  = "attachments"
)

// Phase is the integer progress marker of a program through the pipeline.
type Phase int

const (
	PhaseNew      Phase = 0
	PhaseIngested Phase = 1
	PhaseCrawled  Phase = 2
	PhaseEnriched Phase = 3
	PhaseComplete Phase = 4
	PhaseRejected Phase = 99
)

// Status is the human-readable tag stored next to the phase.
type Status string

const (
	StatusIngested Status = "ingested"
	StatusRejected Status = "rejected"
	StatusCrawled  Status = "crawled"
	StatusEnriched Status = "enriched"
	StatusAnalyzed Status = "analyzed"
)

// Program is a grant-program announcement as stored in the programs collection.
// Unknown front-matter keys round-trip through Extra.
type Program struct {
	Slug string `yaml:"-" json:"slug"`

	Title       string `yaml:"title" json:"title" validate:"required"`
	Operator    string `yaml:"operator,omitempty" json:"operator,omitempty"`
	SupportType string `yaml:"support_type,omitempty" json:"support_type,omitempty"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	SourceID    string `yaml:"source_id,omitempty" json:"source_id,omitempty"`
	DetailURL   string `yaml:"detail_url,omitempty" json:"detail_url,omitempty" validate:"omitempty,url"`

	StartDate    string `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate      string `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	SupportScale string `yaml:"support_scale,omitempty" json:"support_scale,omitempty"`
	Budget       string `yaml:"budget,omitempty" json:"budget,omitempty"`
	MaxFunding   int64  `yaml:"max_funding,omitempty" json:"max_funding,omitempty" validate:"gte=0"`

	Eligibility        []string `yaml:"eligibility,omitempty" json:"eligibility,omitempty"`
	TargetAudience     string   `yaml:"target_audience,omitempty" json:"target_audience,omitempty"`
	RequiredDocuments  []string `yaml:"required_documents,omitempty" json:"required_documents,omitempty"`
	EvaluationCriteria []string `yaml:"evaluation_criteria,omitempty" json:"evaluation_criteria,omitempty"`
	Contact            string   `yaml:"contact,omitempty" json:"contact,omitempty"`

	Attachments []Attachment `yaml:"attachments,omitempty" json:"attachments,omitempty" validate:"dive"`

	QualityScore int    `yaml:"quality_score" json:"quality_score" validate:"gte=0,lte=100"`
	Score        int    `yaml:"score" json:"score" validate:"gte=0,lte=100"`
	RejectReason string `yaml:"reject_reason,omitempty" json:"reject_reason,omitempty"`

	SyncedAt   time.Time  `yaml:"synced_at" json:"synced_at"`
	CrawledAt  *time.Time `yaml:"crawled_at,omitempty" json:"crawled_at,omitempty"`
	EnrichedAt *time.Time `yaml:"enriched_at,omitempty" json:"enriched_at,omitempty"`
	AnalyzedAt *time.Time `yaml:"analyzed_at,omitempty" json:"analyzed_at,omitempty"`

	Phase  Phase  `yaml:"phase" json:"phase" validate:"phase"`
	Status Status `yaml:"status" json:"status" validate:"required"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`

	Body string `yaml:"-" json:"body,omitempty"`
}

// Rejected reports whether the program sits in the terminal rejected phase.
func (p *Program) Rejected() bool {
	return p.Phase == PhaseRejected
}

// AnalyzedAttachments returns the attachments whose text sidecar has been extracted.
func (p *Program) AnalyzedAttachments() []Attachment {
	var out []Attachment
	for _, a := range p.Attachments {
		if a.Analyzed {
			out = append(out, a)
		}
	}
	return out
}

// Attachment references a binary stored under the attachments collection.
// The extracted text lives in a sidecar sharing the binary's base name.
type Attachment struct {
	Path        string `yaml:"path" json:"path" validate:"required"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	SourceURL   string `yaml:"source_url,omitempty" json:"source_url,omitempty"`
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Analyzed    bool   `yaml:"analyzed" json:"analyzed"`
}

// ProgramPatch is the partial field set a stage operation returns. It is
// applied to a Program with merge-if-empty semantics.
type ProgramPatch struct {
	Operator           string         `json:"operator,omitempty"`
	SupportType        string         `json:"support_type,omitempty"`
	Region             string         `json:"region,omitempty"`
	StartDate          string         `json:"start_date,omitempty"`
	EndDate            string         `json:"end_date,omitempty"`
	SupportScale       string         `json:"support_scale,omitempty"`
	Budget             string         `json:"budget,omitempty"`
	MaxFunding         int64          `json:"max_funding,omitempty"`
	Eligibility        []string       `json:"eligibility,omitempty"`
	TargetAudience     string         `json:"target_audience,omitempty"`
	RequiredDocuments  []string       `json:"required_documents,omitempty"`
	EvaluationCriteria []string       `json:"evaluation_criteria,omitempty"`
	Contact            string         `json:"contact,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// Empty reports whether the patch carries no values.
func (p ProgramPatch) Empty() bool {
	return p.Operator == "" && p.SupportType == "" && p.Region == "" &&
		p.StartDate == "" && p.EndDate == "" && p.SupportScale == "" &&
		p.Budget == "" && p.MaxFunding == 0 && len(p.Eligibility) == 0 &&
		p.TargetAudience == "" && len(p.RequiredDocuments) == 0 &&
		len(p.EvaluationCriteria) == 0 && p.Contact == "" && len(p.Extra) == 0
}

// Analysis is the companion fit-score document keyed by the program slug.
type Analysis struct {
	Slug        string      `yaml:"-" json:"slug"`
	ProgramSlug string      `yaml:"program" json:"program" validate:"required"`
	Score       int         `yaml:"score" json:"score" validate:"gte=0,lte=100"`
	Dimensions  []Dimension `yaml:"dimensions" json:"dimensions" validate:"dive"`
	Strengths   []string    `yaml:"strengths,omitempty" json:"strengths,omitempty"`
	Weaknesses  []string    `yaml:"weaknesses,omitempty" json:"weaknesses,omitempty"`
	KeyActions  []string    `yaml:"key_actions,omitempty" json:"key_actions,omitempty"`
	Model       string      `yaml:"model,omitempty" json:"model,omitempty"`
	AnalyzedAt  time.Time   `yaml:"analyzed_at" json:"analyzed_at"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
	Body  string         `yaml:"-" json:"body,omitempty"`
}

// Dimension is one weighted sub-score of a fit analysis.
type Dimension struct {
	Name   string  `yaml:"name" json:"name" validate:"required"`
	Weight float64 `yaml:"weight" json:"weight" validate:"gte=0"`
	Score  int     `yaml:"score" json:"score" validate:"gte=0,lte=100"`
}

// Strategy is the long-form application strategy for a high-scoring program.
type Strategy struct {
	Slug        string    `yaml:"-" json:"slug"`
	ProgramSlug string    `yaml:"program" json:"program" validate:"required"`
	Score       int       `yaml:"score" json:"score" validate:"gte=0,lte=100"`
	Model       string    `yaml:"model,omitempty" json:"model,omitempty"`
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
	Body  string         `yaml:"-" json:"body"`
}

// ApplicationStatus tracks an operator's application to a program.
type ApplicationStatus string

const (
	ApplicationDraft     ApplicationStatus = "draft"
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationAwarded   ApplicationStatus = "awarded"
	ApplicationDeclined  ApplicationStatus = "declined"
)

// Application is an application draft linked to a program.
type Application struct {
	Slug        string            `yaml:"-" json:"slug"`
	ProgramSlug string            `yaml:"program" json:"program" validate:"required"`
	Title       string            `yaml:"title,omitempty" json:"title,omitempty"`
	Status      ApplicationStatus `yaml:"status" json:"status" validate:"oneof=draft submitted awarded declined"`
	UpdatedAt   time.Time         `yaml:"updated_at" json:"updated_at"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
	Body  string         `yaml:"-" json:"body,omitempty"`
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseNew, PhaseIngested, PhaseCrawled, PhaseEnriched, PhaseComplete, PhaseRejected:
		return true
	}
	return false
}
