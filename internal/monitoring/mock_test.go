package monitoring

import (
	"context"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/store"
)

// fakeRuns serves a fixed, newest-first run list.
type fakeRuns struct {
	runs    []model.Run
	listErr error
	limit   int
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.limit = filter.Limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.runs, nil
}
