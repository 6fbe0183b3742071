package model

// Profile describes the operator the programs are screened and scored against.
type Profile struct {
	Name        string   `yaml:"name" mapstructure:"name" json:"name"`
	Industry    string   `yaml:"industry" mapstructure:"industry" json:"industry"`
	Region      string   `yaml:"region" mapstructure:"region" json:"region"`
	Maturity    string   `yaml:"maturity" mapstructure:"maturity" json:"maturity"`
	Employees   int      `yaml:"employees" mapstructure:"employees" json:"employees,omitempty"`
	Description string   `yaml:"description" mapstructure:"description" json:"description,omitempty"`
	Keywords    []string `yaml:"keywords" mapstructure:"keywords" json:"keywords,omitempty"`
}

// Configured reports whether enough of the profile is set to screen against.
func (p Profile) Configured() bool {
	return p.Name != "" || p.Industry != "" || p.Description != ""
}

// ScreenItem is one program in a batched pre-screen request.
type ScreenItem struct {
	Slug        string `json:"id"`
	Title       string `json:"title"`
	Operator    string `json:"operator,omitempty"`
	SupportType string `json:"support_type,omitempty"`
	Region      string `json:"region,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// ScreenVerdict is the pre-screen outcome for one program.
type ScreenVerdict struct {
	Slug   string `json:"id"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// EnrichInput is the text bundle handed to the structuring collaborator.
type EnrichInput struct {
	Program        *Program
	RecordText     string
	CrawledText    string
	AttachmentText string
}

// FitResult is the scoring collaborator's output.
type FitResult struct {
	Score      int         `json:"score"`
	Dimensions []Dimension `json:"dimensions"`
	Strengths  []string    `json:"strengths"`
	Weaknesses []string    `json:"weaknesses"`
	KeyActions []string    `json:"key_actions"`
	Summary    string      `json:"summary"`
	Model      string      `json:"-"`
}

// WeightedScore combines the dimension scores by weight. It falls back to the
// reported score when no usable dimensions exist. The result is clamped to 0..100.
func (f FitResult) WeightedScore() int {
	var sum, weights float64
	for _, d := range f.Dimensions {
		if d.Weight <= 0 {
			continue
		}
		sum += d.Weight * float64(clampScore(d.Score))
		weights += d.Weight
	}
	if weights == 0 {
		return clampScore(f.Score)
	}
	return clampScore(int(sum/weights + 0.5))
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// StrategyResult is the strategy collaborator's output.
type StrategyResult struct {
	Markdown string
	Model    string
}
