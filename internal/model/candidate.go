package model

// Candidate is a normalized listing record that has not been persisted yet.
type Candidate struct {
	Name              string   `json:"name"`
	Operator          string   `json:"operator,omitempty"`
	SupportType       string   `json:"support_type,omitempty"`
	Region            string   `json:"region,omitempty"`
	StartDate         string   `json:"start_date,omitempty"`
	EndDate           string   `json:"end_date,omitempty"`
	SupportScale      string   `json:"support_scale,omitempty"`
	Budget            string   `json:"budget,omitempty"`
	DetailURL         string   `json:"detail_url,omitempty"`
	Source            string   `json:"source"`
	SourceID          string   `json:"source_id,omitempty"`
	Description       string   `json:"description,omitempty"`
	Eligibility       []string `json:"eligibility,omitempty"`
	TargetAudience    string   `json:"target_audience,omitempty"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
	AttachmentURLs    []string `json:"attachment_urls,omitempty"`
}
