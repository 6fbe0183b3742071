package progress

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-contrib/sse"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
)

// SSE writes the stream as server-sent events: "progress" for item events,
// then one "complete" or "error" event. Write failures (a disconnected client)
// are logged once and the remaining events are dropped; the run carries on.
type SSE struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	done    bool
	broken  bool
	seq     int
}

// NewSSE prepares w for an event stream and returns the sink.
func NewSSE(w http.ResponseWriter) *SSE {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &SSE{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
		f.Flush()
	}
	return s
}

func (s *SSE) Progress(ev model.ProgressEvent) {
	s.write(KindProgress, ev, false)
}

func (s *SSE) Complete(summary *model.Summary) {
	s.write(KindComplete, summary, true)
}

func (s *SSE) Fail(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	s.write(KindError, map[string]string{"error": msg}, true)
}

func (s *SSE) write(kind Kind, payload any, terminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if terminal {
		s.done = true
	}
	if s.broken {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("progress: marshal sse payload", zap.String("event", string(kind)), zap.Error(err))
		return
	}
	s.seq++
	var buf bytes.Buffer
	if err := sse.Encode(&buf, sse.Event{Id: strconv.Itoa(s.seq), Event: string(kind), Data: string(data)}); err != nil {
		zap.L().Error("progress: encode sse event", zap.String("event", string(kind)), zap.Error(err))
		return
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		s.broken = true
		zap.L().Info("progress: sse client went away, continuing run", zap.Error(err))
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
