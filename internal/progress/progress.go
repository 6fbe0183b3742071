// Package progress carries run progress from the orchestrator to whoever
// triggered the run. Every sink receives the same ordered event sequence
// followed by exactly one terminal call; the orchestrator never branches on
// which sink it was given.
package progress

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
)

// Sink observes a pipeline run.
type Sink interface {
	Progress(ev model.ProgressEvent)
	Complete(summary *model.Summary)
	Fail(err error)
}

// Kind tags a streamed message.
type Kind string

const (
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Message is one tagged element of a progress stream.
type Message struct {
	Kind    Kind                 `json:"kind"`
	Event   *model.ProgressEvent `json:"event,omitempty"`
	Summary *model.Summary       `json:"summary,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// Terminal reports whether m ends the stream.
func (m Message) Terminal() bool {
	return m.Kind == KindComplete || m.Kind == KindError
}

// Nop discards everything. Non-streaming callers use it and read the summary
// from the orchestrator's return value.
type Nop struct{}

func (Nop) Progress(model.ProgressEvent) {}
func (Nop) Complete(*model.Summary)      {}
func (Nop) Fail(error)                   {}

// Channel delivers messages on a channel. Exactly one terminal message is
// sent, after which the channel is closed and further calls are ignored.
type Channel struct {
	mu   sync.Mutex
	ch   chan Message
	done bool
}

// NewChannel returns a Channel sink with the given buffer size.
func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{ch: make(chan Message, buffer)}
}

// C returns the receive side of the stream.
func (c *Channel) C() <-chan Message { return c.ch }

func (c *Channel) Progress(ev model.ProgressEvent) {
	c.send(Message{Kind: KindProgress, Event: &ev}, false)
}

func (c *Channel) Complete(summary *model.Summary) {
	c.send(Message{Kind: KindComplete, Summary: summary}, true)
}

func (c *Channel) Fail(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.send(Message{Kind: KindError, Error: msg}, true)
}

func (c *Channel) send(m Message, terminal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.ch <- m
	if terminal {
		c.done = true
		close(c.ch)
	}
}

// Forward replays the messages of c into sink until c is closed.
func Forward(c <-chan Message, sink Sink) {
	for m := range c {
		switch m.Kind {
		case KindProgress:
			if m.Event != nil {
				sink.Progress(*m.Event)
			}
		case KindComplete:
			sink.Complete(m.Summary)
		case KindError:
			sink.Fail(eris.New(m.Error))
		}
	}
}

// Tee fans every call out to several sinks in order.
type Tee []Sink

func (t Tee) Progress(ev model.ProgressEvent) {
	for _, s := range t {
		s.Progress(ev)
	}
}

func (t Tee) Complete(summary *model.Summary) {
	for _, s := range t {
		s.Complete(summary)
	}
}

func (t Tee) Fail(err error) {
	for _, s := range t {
		s.Fail(err)
	}
}
