package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/pipeline"
	"github.com/sells-group/grant-cli/internal/progress"
	"github.com/sells-group/grant-cli/internal/store"
)

type runRequest struct {
	Force bool `json:"force"`
}

type runDetail struct {
	Run    *model.Run       `json:"run"`
	Phases []model.RunPhase `json:"phases"`
}

// wantsStream reports whether the caller asked for server-sent events.
func wantsStream(r *http.Request) bool {
	if v := r.URL.Query().Get("stream"); v != "" {
		on, _ := strconv.ParseBool(v)
		return on
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// triggerRun executes a full pipeline run. The run is detached from the
// request context: a client that disconnects does not stop it.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			respondError(w, r, model.Invalidf("api: invalid run request: %v", err))
			return
		}
	}
	if v := r.URL.Query().Get("force"); v != "" {
		req.Force, _ = strconv.ParseBool(v)
	}

	if !s.acquire() {
		respondError(w, r, errRunInProgress)
		return
	}
	defer s.release()

	ctx := context.WithoutCancel(r.Context())
	opts := model.RunOptions{Force: req.Force, Trigger: "api"}

	if wantsStream(r) {
		s.streamRun(ctx, w, opts)
		return
	}

	summary, err := s.deps.Runner.Run(ctx, opts, s.sink(progress.Nop{}))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// streamBuffer is how many progress messages may queue ahead of the client.
const streamBuffer = 64

// streamRun executes the run on its own goroutine and relays its progress
// channel to the client as server-sent events. It returns once the run has.
func (s *Server) streamRun(ctx context.Context, w http.ResponseWriter, opts model.RunOptions) {
	stream := progress.NewChannel(streamBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, err := s.deps.Runner.Run(ctx, opts, s.sink(stream))
		if err != nil {
			zap.L().Warn("api: streamed run failed", zap.Error(err))
			stream.Fail(err)
			return
		}
		stream.Complete(summary)
	}()

	progress.Forward(stream.C(), progress.NewSSE(w))
	<-done
}

// sink tees the caller's sink with the metrics sink when metrics are enabled.
func (s *Server) sink(primary progress.Sink) progress.Sink {
	if s.deps.Metrics == nil {
		return primary
	}
	return progress.Tee{primary, s.deps.Metrics.Sink()}
}

type reenrichRequest struct {
	Recrawl bool `json:"recrawl"`
}

func (s *Server) reenrich(w http.ResponseWriter, r *http.Request) {
	var req reenrichRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			respondError(w, r, model.Invalidf("api: invalid reenrich request: %v", err))
			return
		}
	}

	if !s.acquire() {
		respondError(w, r, errRunInProgress)
		return
	}
	defer s.release()

	res, err := s.deps.Runner.Reenrich(context.WithoutCancel(r.Context()), chi.URLParam(r, "slug"),
		pipeline.ReenrichOptions{Recrawl: req.Recrawl})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveUsage(res.Usage)
	}
	respondJSON(w, r, http.StatusOK, res)
}

func (s *Server) reenrichBulk(w http.ResponseWriter, r *http.Request) {
	req := pipeline.BulkOptions{QualityBelow: pipeline.DefaultBulkQualityBelow}
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			respondError(w, r, model.Invalidf("api: invalid bulk reenrich request: %v", err))
			return
		}
	}
	if req.QualityBelow < 0 || req.QualityBelow > 100 {
		respondError(w, r, model.Invalidf("api: quality_below must be between 0 and 100"))
		return
	}

	if !s.acquire() {
		respondError(w, r, errRunInProgress)
		return
	}
	defer s.release()

	res, err := s.deps.Runner.ReenrichBulk(context.WithoutCancel(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveUsage(res.Usage)
	}
	respondJSON(w, r, http.StatusOK, res)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:  model.RunStatus(q.Get("status")),
		Trigger: q.Get("trigger"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		respondError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		respondError(w, r, err)
		return
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, r, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.deps.Runs.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	phases, err := s.deps.Runs.ListPhases(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if phases == nil {
		phases = []model.RunPhase{}
	}
	respondJSON(w, r, http.StatusOK, runDetail{Run: run, Phases: phases})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, model.Invalidf("api: %q is not a non-negative integer", v)
	}
	return n, nil
}
