package interpreter

import (
	"sync/atomic"
	"time"

	"github.com/jwebster45206/heartline/pkg/dialogue"
)

// Presenter receives render and audio requests. Calls are fire-and-forget;
// implementations must not block the interpreter.
type Presenter interface {
	PresentLine(speaker, text string, visual dialogue.Visual)
	PresentChoices(choices []string)
	PlayCue(name string, duration time.Duration)
}

// Renderer expands text templates before presentation.
type Renderer interface {
	Render(text string) string
}

// NopPresenter discards every request.
type NopPresenter struct{}

func (NopPresenter) PresentLine(string, string, dialogue.Visual) {}
func (NopPresenter) PresentChoices([]string)                     {}
func (NopPresenter) PlayCue(string, time.Duration)               {}

// OutputKind identifies a presenter request.
type OutputKind string

const (
	OutputLine    OutputKind = "line"
	OutputChoices OutputKind = "choices"
	OutputCue     OutputKind = "cue"
)

// Output is a presenter request captured for delivery elsewhere, such as a
// websocket client or a terminal UI.
type Output struct {
	Kind     OutputKind       `json:"kind"`
	Speaker  string           `json:"speaker,omitempty"`
	Text     string           `json:"text,omitempty"`
	Visual   *dialogue.Visual `json:"visual,omitempty"`
	Choices  []string         `json:"choices,omitempty"`
	Cue      string           `json:"cue,omitempty"`
	Duration time.Duration    `json:"duration,omitempty"`
}

// BufferedPresenter queues requests on a bounded channel. When the buffer is
// full new requests are dropped and counted.
type BufferedPresenter struct {
	out     chan Output
	dropped atomic.Int64
}

// NewBufferedPresenter creates a presenter holding up to size requests.
func NewBufferedPresenter(size int) *BufferedPresenter {
	if size <= 0 {
		size = 64
	}
	return &BufferedPresenter{out: make(chan Output, size)}
}

// Output returns the channel requests are delivered on.
func (p *BufferedPresenter) Output() <-chan Output {
	return p.out
}

// Dropped returns how many requests were discarded because the buffer was full.
func (p *BufferedPresenter) Dropped() int64 {
	return p.dropped.Load()
}

// Drain returns every queued request without waiting.
func (p *BufferedPresenter) Drain() []Output {
	var outputs []Output
	for {
		select {
		case o := <-p.out:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

func (p *BufferedPresenter) send(o Output) {
	select {
	case p.out <- o:
	default:
		p.dropped.Add(1)
	}
}

func (p *BufferedPresenter) PresentLine(speaker, text string, visual dialogue.Visual) {
	o := Output{Kind: OutputLine, Speaker: speaker, Text: text}
	if !visual.IsZero() {
		o.Visual = &visual
	}
	p.send(o)
}

func (p *BufferedPresenter) PresentChoices(choices []string) {
	p.send(Output{Kind: OutputChoices, Choices: append([]string(nil), choices...)})
}

func (p *BufferedPresenter) PlayCue(name string, duration time.Duration) {
	p.send(Output{Kind: OutputCue, Cue: name, Duration: duration})
}
