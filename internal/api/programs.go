package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sells-group/grant-cli/internal/model"
)

// programItem is the list view of a program; the body and attachments are
// only returned by the detail route.
type programItem struct {
	Slug         string       `json:"slug"`
	Title        string       `json:"title"`
	Operator     string       `json:"operator,omitempty"`
	SupportType  string       `json:"support_type,omitempty"`
	Region       string       `json:"region,omitempty"`
	EndDate      string       `json:"end_date,omitempty"`
	MaxFunding   int64        `json:"max_funding,omitempty"`
	Phase        model.Phase  `json:"phase"`
	Status       model.Status `json:"status"`
	Score        int          `json:"score"`
	QualityScore int          `json:"quality_score"`
	SyncedAt     time.Time    `json:"synced_at"`
}

func itemOf(p *model.Program) programItem {
	return programItem{
		Slug:         p.Slug,
		Title:        p.Title,
		Operator:     p.Operator,
		SupportType:  p.SupportType,
		Region:       p.Region,
		EndDate:      p.EndDate,
		MaxFunding:   p.MaxFunding,
		Phase:        p.Phase,
		Status:       p.Status,
		Score:        p.Score,
		QualityScore: p.QualityScore,
		SyncedAt:     p.SyncedAt,
	}
}

type programFilter struct {
	phase           *model.Phase
	minScore        int
	includeRejected bool
	sortByScore     bool
}

func parseProgramFilter(r *http.Request) (programFilter, error) {
	q := r.URL.Query()
	var f programFilter
	if v := q.Get("phase"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !model.Phase(n).Valid() {
			return f, model.Invalidf("api: invalid phase %q", v)
		}
		ph := model.Phase(n)
		f.phase = &ph
		f.includeRejected = ph == model.PhaseRejected
	}
	minScore, err := intParam(q.Get("min_score"))
	if err != nil {
		return f, err
	}
	f.minScore = minScore
	if v := q.Get("include_rejected"); v != "" {
		f.includeRejected, _ = strconv.ParseBool(v)
	}
	f.sortByScore = q.Get("sort") == "score"
	return f, nil
}

func (f programFilter) match(p *model.Program) bool {
	if p.Rejected() && !f.includeRejected {
		return false
	}
	if f.phase != nil && p.Phase != *f.phase {
		return false
	}
	return p.Score >= f.minScore
}

func (s *Server) listPrograms(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProgramFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	programs, err := s.deps.Catalog.ListPrograms(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	items := make([]programItem, 0, len(programs))
	for _, p := range programs {
		if filter.match(p) {
			items = append(items, itemOf(p))
		}
	}
	if filter.sortByScore {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	}
	respondJSON(w, r, http.StatusOK, items)
}

func (s *Server) getProgram(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Catalog.GetProgram(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, p)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Catalog.GetAnalysis(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, a)
}

func (s *Server) getStrategy(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Catalog.GetStrategy(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, st)
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Catalog.GetApplication(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, a)
}

// putApplication creates or replaces an application draft. The program link
// defaults to the application slug.
func (s *Server) putApplication(w http.ResponseWriter, r *http.Request) {
	var a model.Application
	if err := render.DecodeJSON(r.Body, &a); err != nil {
		respondError(w, r, model.Invalidf("api: invalid application: %v", err))
		return
	}
	a.Slug = chi.URLParam(r, "slug")
	if a.ProgramSlug == "" {
		a.ProgramSlug = a.Slug
	}
	if err := s.deps.Catalog.PutApplication(r.Context(), &a); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, &a)
}
