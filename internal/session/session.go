// Package session tracks one review sitting: its lifecycle, its wall-clock
// duration excluding pauses, and the identity stamped onto exports.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionEnded indicates an operation on a session that was already
// stopped. Stopped sessions are final; review continues in a new session.
var ErrSessionEnded = errors.New("session already ended")

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pause is one completed pause interval within a session.
type Pause struct {
	PausedAt  time.Time `json:"paused_at"`
	ResumedAt time.Time `json:"resumed_at"`
}

// Session is a pausable review timer. Elapsed time accumulates only while
// running, so coffee breaks do not inflate the recorded review duration.
// Safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id       string
	reviewer string
	state    State

	startedAt time.Time
	stoppedAt time.Time
	pausedAt  time.Time
	pauses    []Pause
	paused    time.Duration // total time spent paused

	now func() time.Time
}

// New creates an idle session for the given reviewer.
func New(reviewer string) *Session {
	return &Session{
		id:       uuid.NewString(),
		reviewer: reviewer,
		now:      time.Now,
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Reviewer returns the reviewer name the session was created with.
func (s *Session) Reviewer() string { return s.reviewer }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves an idle session to running and records the start time.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStopped:
		return ErrSessionEnded
	case StateRunning, StatePaused:
		return fmt.Errorf("session already started")
	}
	s.startedAt = s.now()
	s.state = StateRunning
	return nil
}

// Pause suspends the timer. Pausing a paused session is a no-op.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStopped:
		return ErrSessionEnded
	case StateIdle:
		return fmt.Errorf("session not started")
	case StatePaused:
		return nil
	}
	s.pausedAt = s.now()
	s.state = StatePaused
	return nil
}

// Resume restarts the timer after a pause, accumulating the paused gap.
// Resuming a running session is a no-op.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStopped:
		return ErrSessionEnded
	case StateIdle:
		return fmt.Errorf("session not started")
	case StateRunning:
		return nil
	}
	s.closePause(s.now())
	s.state = StateRunning
	return nil
}

// closePause records the completed pause interval ending at t.
func (s *Session) closePause(t time.Time) {
	s.pauses = append(s.pauses, Pause{PausedAt: s.pausedAt, ResumedAt: t})
	s.paused += t.Sub(s.pausedAt)
}

// Stop ends the session permanently and freezes the elapsed time. A second
// Stop returns ErrSessionEnded.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStopped:
		return ErrSessionEnded
	case StateIdle:
		return fmt.Errorf("session not started")
	case StatePaused:
		// Close the open pause so it is excluded from the total.
		s.closePause(s.now())
	}
	s.stoppedAt = s.now()
	s.state = StateStopped
	return nil
}

// Elapsed returns the active review time so far: wall time since Start
// minus every paused interval. Zero for an idle session, frozen after Stop.
func (s *Session) Elapsed() time.Duration {
	return s.ElapsedAt(s.now())
}

// ElapsedAt returns the active review time as of the given instant. For
// paused or stopped sessions the instant is ignored; the clock is frozen.
func (s *Session) ElapsedAt(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return 0
	case StateStopped:
		return s.stoppedAt.Sub(s.startedAt) - s.paused
	case StatePaused:
		return s.pausedAt.Sub(s.startedAt) - s.paused
	default:
		return now.Sub(s.startedAt) - s.paused
	}
}

// StartedAt returns the session start time, zero if never started.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Record is the summary of a finished session, stamped onto every export.
type Record struct {
	SessionID string        `json:"session_id"`
	Reviewer  string        `json:"reviewer_id"`
	StartedAt time.Time     `json:"started_at"`
	StoppedAt time.Time     `json:"stopped_at"`
	Duration  time.Duration `json:"duration"`
	Pauses    []Pause       `json:"pauses,omitempty"`
}

// Record returns the export summary for a stopped session.
func (s *Session) Record() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return Record{}, fmt.Errorf("session %s still %s", s.id, s.state)
	}
	return Record{
		SessionID: s.id,
		Reviewer:  s.reviewer,
		StartedAt: s.startedAt,
		StoppedAt: s.stoppedAt,
		Duration:  s.stoppedAt.Sub(s.startedAt) - s.paused,
		Pauses:    append([]Pause(nil), s.pauses...),
	}, nil
}
