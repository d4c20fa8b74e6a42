package speech

import (
	"errors"
	"strings"
	"time"
)

// ErrUnavailable signals that no synthesis backend is usable. Callers degrade
// to text-only conversation; no turn is lost.
var ErrUnavailable = errors.New("speech: synthesis unavailable")

// Synthesizer is the text-to-speech seam. Speak starts playback of text and
// invokes onDone exactly once when playback finishes. The returned stop
// function cancels the pending completion; after stop, onDone never fires.
type Synthesizer interface {
	Speak(text string, onDone func()) (stop func(), err error)
}

// Simulated stands in for a device TTS engine: playback "finishes" after a
// duration derived from the word count and a speaking rate.
type Simulated struct {
	wordsPerMinute int
	minDuration    time.Duration
}

// NewSimulated returns a Simulated synthesizer. wordsPerMinute values <= 0
// fall back to 160.
func NewSimulated(wordsPerMinute int) *Simulated {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 160
	}
	return &Simulated{
		wordsPerMinute: wordsPerMinute,
		minDuration:    300 * time.Millisecond,
	}
}

// Speak schedules onDone after the simulated playback duration.
func (s *Simulated) Speak(text string, onDone func()) (func(), error) {
	timer := time.AfterFunc(s.duration(text), onDone)
	return func() { timer.Stop() }, nil
}

func (s *Simulated) duration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return s.minDuration
	}
	d := time.Duration(words) * time.Minute / time.Duration(s.wordsPerMinute)
	if d < s.minDuration {
		d = s.minDuration
	}
	return d
}

// Noop is used when speech is disabled. Playback completes immediately so the
// conversation continues text-only.
type Noop struct{}

// NewNoop returns a Noop synthesizer.
func NewNoop() *Noop {
	return &Noop{}
}

// Speak invokes onDone before returning.
func (n *Noop) Speak(_ string, onDone func()) (func(), error) {
	onDone()
	return func() {}, nil
}
