package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Lane names shared by every call site of a run.
const (
	LaneAI     = "ai"
	LaneCrawl  = "crawl"
	LaneReader = "reader"
)

// ErrLaneOpen is returned without calling out when a lane has seen too many
// consecutive failures and is cooling down.
var ErrLaneOpen = eris.New("resilience: lane is cooling down after repeated failures")

// LaneConfig configures one scheduler lane.
type LaneConfig struct {
	// Interval is the minimum spacing between calls. Zero means unthrottled.
	Interval time.Duration
	// TripAfter consecutive failures open the lane. Zero disables tripping.
	TripAfter int
	// Cooldown is how long an open lane rejects calls before allowing a probe.
	Cooldown time.Duration
}

// Scheduler spaces external calls per lane with a token bucket and stops
// calling a lane that keeps failing. Unknown lanes are unthrottled.
type Scheduler struct {
	mu    sync.Mutex
	lanes map[string]*lane
	now   func() time.Time
}

type lane struct {
	name     string
	limiter  *rate.Limiter
	cfg      LaneConfig
	failures int
	openedAt time.Time
	open     bool
}

// NewScheduler builds a scheduler with the given lanes.
func NewScheduler(lanes map[string]LaneConfig) *Scheduler {
	s := &Scheduler{lanes: make(map[string]*lane, len(lanes)), now: time.Now}
	for name, cfg := range lanes {
		s.lanes[name] = newLane(name, cfg)
	}
	return s
}

func newLane(name string, cfg LaneConfig) *lane {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	if cfg.TripAfter > 0 && cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &lane{name: name, limiter: rate.NewLimiter(limit, 1), cfg: cfg}
}

func (s *Scheduler) lane(name string) *lane {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lanes[name]
}

// Wait blocks until the lane allows another call or ctx ends.
func (s *Scheduler) Wait(ctx context.Context, name string) error {
	l := s.lane(name)
	if l == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Do waits for the lane, then runs fn unless the lane is open. The outcome of
// fn feeds the lane's failure counter.
func (s *Scheduler) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	l := s.lane(name)
	if l == nil {
		return fn(ctx)
	}
	if err := s.admit(l); err != nil {
		return err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	err := fn(ctx)
	s.record(l, err)
	return err
}

// Call is Do for calls with a result.
func Call[T any](ctx context.Context, s *Scheduler, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, name, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (s *Scheduler) admit(l *lane) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !l.open {
		return nil
	}
	if s.now().Sub(l.openedAt) >= l.cfg.Cooldown {
		// Let one probe through; a failure re-opens the lane.
		l.open = false
		l.failures = l.cfg.TripAfter - 1
		return nil
	}
	return ErrLaneOpen
}

func (s *Scheduler) record(l *lane, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil || l.cfg.TripAfter <= 0 {
		l.failures = 0
		return
	}
	l.failures++
	if l.failures >= l.cfg.TripAfter && !l.open {
		l.open = true
		l.openedAt = s.now()
		zap.L().Warn("resilience: lane opened after consecutive failures",
			zap.String("lane", l.name),
			zap.Int("failures", l.failures),
			zap.Duration("cooldown", l.cfg.Cooldown),
		)
	}
}

// Open reports whether a lane is currently rejecting calls.
func (s *Scheduler) Open(name string) bool {
	l := s.lane(name)
	if l == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return l.open && s.now().Sub(l.openedAt) < l.cfg.Cooldown
}
