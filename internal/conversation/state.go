package conversation

import (
	"sync"
)

// Snapshot is a consistent read-only view of the conversation at one
// point in time.
type Snapshot struct {
	Turns      []Turn `json:"turns"`
	TokensUsed int64  `json:"tokensUsed"`
}

// State is the conversation history plus the running token counter.
//
// The orchestrator is the single writer; any number of concurrent readers
// (the status API, the TUI) observe it through Snapshot. The turn sequence
// is append-only: no deletion, no reordering. The token counter never
// decreases.
type State struct {
	mu     sync.RWMutex
	turns  []Turn
	tokens int64

	// sink, when set, receives every appended turn (append-only log).
	sink Sink
}

// Sink receives turns as they are appended, for persistence or display.
// Append errors are reported to the writer but do not undo the append.
type Sink interface {
	AppendTurn(seq int, turn Turn, tokensUsed int64) error
}

// NewState creates an empty conversation.
func NewState() *State {
	return &State{}
}

// SetSink attaches an append sink. Must be called before the first Append.
func (s *State) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Append adds a turn to the history. Appends are atomic with respect to
// concurrent Snapshot readers.
func (s *State) Append(turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	if s.sink != nil {
		return s.sink.AppendTurn(len(s.turns)-1, turn, s.tokens)
	}
	return nil
}

// AddTokens increases the cumulative token counter. Negative deltas are
// ignored; the counter is monotonically non-decreasing.
func (s *State) AddTokens(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.tokens += n
	s.mu.Unlock()
}

// TokensUsed returns the cumulative token counter.
func (s *State) TokensUsed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Len returns the number of turns.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Snapshot returns a consistent copy of the full history and counter.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{Turns: turns, TokensUsed: s.tokens}
}

// restore replaces the history wholesale. Only used by log replay before
// the conversation goes live.
func (s *State) restore(turns []Turn, tokens int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = turns
	s.tokens = tokens
}
