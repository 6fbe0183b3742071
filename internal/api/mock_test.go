package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/pipeline"
	"github.com/sells-group/grant-cli/internal/progress"
	"github.com/sells-group/grant-cli/internal/store"
)

// --- Runner Mock ---

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, opts model.RunOptions, sink progress.Sink) (*model.Summary, error) {
	args := m.Called(ctx, opts, sink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

func (m *mockRunner) Reenrich(ctx context.Context, slug string, opts pipeline.ReenrichOptions) (*pipeline.ReenrichResult, error) {
	args := m.Called(ctx, slug, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.ReenrichResult), args.Error(1)
}

func (m *mockRunner) ReenrichBulk(ctx context.Context, opts pipeline.BulkOptions) (*pipeline.BulkResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.BulkResult), args.Error(1)
}

// --- RunReader Mock ---

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRuns) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockRuns) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunPhase), args.Error(1)
}

func (m *mockRuns) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
