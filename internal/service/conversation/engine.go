package conversation

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/kiskahq/kiska/internal/model/conversation"
	"github.com/kiskahq/kiska/internal/service/speech"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrAssistantSpeaking rejects a listening toggle while playback is in
	// flight.
	ErrAssistantSpeaking = errors.New("assistant is speaking")
)

// Config holds the engine's timing knobs. The delays simulate the
// assistant's "thinking" pauses; zero delays run the work inline.
type Config struct {
	GreetingDelay time.Duration
	ReplyDelay    time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		GreetingDelay: 1500 * time.Millisecond,
		ReplyDelay:    time.Second,
	}
}

// Engine owns every conversation's state: the append-only transcript and the
// listening/speaking flags. All mutation goes through the engine under one
// mutex; delayed work runs on timers that are tracked per conversation and
// stopped at teardown, so nothing mutates a conversation after End.
type Engine struct {
	mu            sync.Mutex
	cfg           Config
	responder     *Responder
	synth         speech.Synthesizer
	conversations map[string]*conversationState
}

type conversationState struct {
	id          string
	username    string
	listening   bool
	speaking    bool
	transcript  []model.Turn
	timers      map[*time.Timer]struct{}
	stopSpeak   func()
	speechQueue []string
	subscribers map[chan Event]struct{}
	ended       bool
}

// NewEngine wires the engine to its responder and synthesizer.
func NewEngine(cfg Config, responder *Responder, synth speech.Synthesizer) *Engine {
	return &Engine{
		cfg:           cfg,
		responder:     responder,
		synth:         synth,
		conversations: make(map[string]*conversationState),
	}
}

// Start opens a conversation for username and schedules the automatic
// greeting turn after the configured delay.
func (e *Engine) Start(username string) model.State {
	c := &conversationState{
		id:          uuid.NewString(),
		username:    username,
		transcript:  make([]model.Turn, 0, 16),
		timers:      make(map[*time.Timer]struct{}),
		subscribers: make(map[chan Event]struct{}),
	}

	e.mu.Lock()
	e.conversations[c.id] = c
	snapshot := e.stateLocked(c)
	e.mu.Unlock()

	e.schedule(c, e.cfg.GreetingDelay, func() {
		e.speakTurn(c, e.responder.Greeting(username))
	})

	return snapshot
}

// ToggleListening flips the listening flag. Rejected while the assistant is
// speaking.
func (e *Engine) ToggleListening(id string) (model.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conversations[id]
	if !ok {
		return model.State{}, ErrConversationNotFound
	}
	if c.speaking {
		return e.stateLocked(c), ErrAssistantSpeaking
	}

	c.listening = !c.listening
	snapshot := e.stateLocked(c)
	e.broadcastLocked(c, Event{Type: EventState, State: &snapshot})
	return snapshot, nil
}

// HandleUtterance records a recognized user utterance and schedules the
// reply. Empty or whitespace-only text is a no-op: no turn is appended and no
// reply is generated.
func (e *Engine) HandleUtterance(id, text string) error {
	e.mu.Lock()
	c, ok := e.conversations[id]
	if !ok {
		e.mu.Unlock()
		return ErrConversationNotFound
	}
	if strings.TrimSpace(text) == "" {
		e.mu.Unlock()
		return nil
	}

	turn := e.appendTurnLocked(c, model.SenderUser, text)
	e.broadcastLocked(c, Event{Type: EventTurn, Turn: &turn})
	username := c.username
	e.mu.Unlock()

	e.schedule(c, e.cfg.ReplyDelay, func() {
		e.speakTurn(c, e.responder.Respond(text, username))
	})
	return nil
}

// Transcript returns a copy of the ordered turns so far.
func (e *Engine) Transcript(id string) ([]model.Turn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := make([]model.Turn, len(c.transcript))
	copy(copied, c.transcript)
	return copied, nil
}

// State returns a snapshot of the conversation flags.
func (e *Engine) State(id string) (model.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conversations[id]
	if !ok {
		return model.State{}, ErrConversationNotFound
	}
	return e.stateLocked(c), nil
}

// Subscribe registers a live event feed for the conversation. The cancel
// function must be called when the consumer goes away.
func (e *Engine) Subscribe(id string) (<-chan Event, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conversations[id]
	if !ok {
		return nil, nil, ErrConversationNotFound
	}

	ch := make(chan Event, 32)
	c.subscribers[ch] = struct{}{}

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, still := c.subscribers[ch]; still {
			delete(c.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// End tears the conversation down: every pending timer and playback is
// stopped so no mutation or callback outlives the session.
func (e *Engine) End(id string) error {
	e.mu.Lock()
	c, ok := e.conversations[id]
	if !ok {
		e.mu.Unlock()
		return ErrConversationNotFound
	}

	c.ended = true
	for timer := range c.timers {
		timer.Stop()
	}
	c.timers = make(map[*time.Timer]struct{})
	stop := c.stopSpeak
	c.stopSpeak = nil
	c.speechQueue = nil
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	delete(e.conversations, id)
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

// speakTurn appends an assistant turn and drives playback. Playback is
// serialized per conversation: while a prior playback is in flight the text
// is queued and played from finishSpeaking, so there is never more than one
// pending completion and speaking stays true until the last queued playback
// ends. The turn is already in the transcript when playback starts, so a
// synthesis failure only skips audio.
func (e *Engine) speakTurn(c *conversationState, text string) {
	e.mu.Lock()
	if c.ended {
		e.mu.Unlock()
		return
	}
	turn := e.appendTurnLocked(c, model.SenderAssistant, text)
	e.broadcastLocked(c, Event{Type: EventTurn, Turn: &turn})

	if c.speaking {
		c.speechQueue = append(c.speechQueue, text)
		e.mu.Unlock()
		return
	}

	c.speaking = true
	snapshot := e.stateLocked(c)
	e.broadcastLocked(c, Event{Type: EventState, State: &snapshot})
	e.mu.Unlock()

	e.play(c, text)
}

// play starts one playback. Callers must have set speaking already.
func (e *Engine) play(c *conversationState, text string) {
	stop, err := e.synth.Speak(text, func() { e.finishSpeaking(c) })
	if err != nil {
		log.Printf("[conversation] synthesis unavailable, continuing text-only: %v", err)
		e.finishSpeaking(c)
		return
	}

	e.mu.Lock()
	if c.ended {
		e.mu.Unlock()
		stop()
		return
	}
	if c.speaking {
		c.stopSpeak = stop
	}
	e.mu.Unlock()
}

// finishSpeaking runs when a playback completes: it starts the next queued
// playback, or clears speaking when the queue is empty.
func (e *Engine) finishSpeaking(c *conversationState) {
	e.mu.Lock()
	if c.ended || !c.speaking {
		e.mu.Unlock()
		return
	}
	c.stopSpeak = nil

	if len(c.speechQueue) > 0 {
		next := c.speechQueue[0]
		c.speechQueue = c.speechQueue[1:]
		e.mu.Unlock()
		e.play(c, next)
		return
	}

	c.speaking = false
	snapshot := e.stateLocked(c)
	e.broadcastLocked(c, Event{Type: EventState, State: &snapshot})
	e.mu.Unlock()
}

func (e *Engine) appendTurnLocked(c *conversationState, sender model.Sender, text string) model.Turn {
	turn := model.Turn{
		ID:             uuid.NewString(),
		ConversationID: c.id,
		Sender:         sender,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	c.transcript = append(c.transcript, turn)
	return turn
}

// broadcastLocked pushes ev to every subscriber. Sends never block; a
// subscriber that has fallen 32 events behind misses this one and resyncs
// from the next state snapshot.
func (e *Engine) broadcastLocked(c *conversationState, ev Event) {
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Engine) stateLocked(c *conversationState) model.State {
	return model.State{
		ConversationID: c.id,
		Username:       c.username,
		Listening:      c.listening,
		Speaking:       c.speaking,
		TurnCount:      len(c.transcript),
	}
}

// schedule runs fn after delay on a tracked timer. A zero delay runs fn
// inline, which keeps tests deterministic. Timers are dropped from tracking
// when they fire and stopped wholesale at End; fn re-checks ended itself.
func (e *Engine) schedule(c *conversationState, delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(c.timers, timer)
		ended := c.ended
		e.mu.Unlock()
		if ended {
			return
		}
		fn()
	})

	e.mu.Lock()
	if c.ended {
		e.mu.Unlock()
		timer.Stop()
		return
	}
	c.timers[timer] = struct{}{}
	e.mu.Unlock()
}
