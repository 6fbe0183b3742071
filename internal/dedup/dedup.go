package dedup

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
)

// Store is the program persistence the engine prunes.
type Store interface {
	ListPrograms(ctx context.Context) ([]*model.Program, error)
	DeleteProgram(ctx context.Context, slug string) error
}

// Engine applies duplicate collapsing and scope filtering to stored programs.
type Engine struct {
	store Store
	rules Rules
}

// New returns an Engine over store using rules for scope filtering.
func New(store Store, rules Rules) *Engine {
	return &Engine{store: store, rules: rules}
}

// Key returns the value two programs share when they are duplicates.
func (e *Engine) Key(title string) string {
	return NormalizeName(title)
}

// Losers groups programs by normalized title and returns, for every group with
// more than one member, all but the winner. The winner has the highest quality
// score; ties go to the most recent sync, then to the smaller slug.
func Losers(programs []*model.Program) []*model.Program {
	groups := make(map[string][]*model.Program)
	var keys []string
	for _, p := range programs {
		key := NormalizeName(p.Title)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], p)
	}
	sort.Strings(keys)

	var out []*model.Program
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return better(group[i], group[j]) })
		out = append(out, group[1:]...)
	}
	return out
}

func better(a, b *model.Program) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	if !a.SyncedAt.Equal(b.SyncedAt) {
		return a.SyncedAt.After(b.SyncedAt)
	}
	return a.Slug < b.Slug
}

// Dedup physically deletes duplicate programs and returns how many it removed.
func (e *Engine) Dedup(ctx context.Context) (int, error) {
	programs, err := e.store.ListPrograms(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "dedup: list programs")
	}

	removed := 0
	for _, p := range Losers(programs) {
		if err := e.store.DeleteProgram(ctx, p.Slug); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return removed, eris.Wrapf(err, "dedup: delete %s", p.Slug)
		}
		removed++
		zap.L().Debug("dedup: removed duplicate",
			zap.String("slug", p.Slug),
			zap.Int("quality_score", p.QualityScore),
		)
	}
	return removed, nil
}

// Filter physically deletes programs that the scope rules drop and returns
// how many it removed. Rejected programs are left alone so their verdict
// survives the next ingest.
func (e *Engine) Filter(ctx context.Context) (int, error) {
	programs, err := e.store.ListPrograms(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "dedup: list programs")
	}

	removed := 0
	for _, p := range programs {
		if p.Rejected() {
			continue
		}
		drop, reason := e.rules.Check(p)
		if !drop {
			continue
		}
		if err := e.store.DeleteProgram(ctx, p.Slug); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return removed, eris.Wrapf(err, "dedup: delete %s", p.Slug)
		}
		removed++
		zap.L().Info("dedup: filtered out program",
			zap.String("slug", p.Slug),
			zap.String("reason", reason),
		)
	}
	return removed, nil
}
