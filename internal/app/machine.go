package app

import (
	"context"
	"log"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// DefaultTimeLimit is the per-attempt budget in seconds.
const DefaultTimeLimit = 600

// Option configures a Machine.
type Option func(*Machine)

// WithTimeLimit sets the attempt budget in whole seconds.
func WithTimeLimit(seconds int) Option {
	return func(m *Machine) {
		if seconds > 0 {
			m.timeLimit = seconds
		}
	}
}

// WithTickInterval sets the wall-clock length of one countdown tick.
func WithTickInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTicker replaces the timer facility; tests drive ticks by hand.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(m *Machine) {
		m.newTicker = newTicker
	}
}

// WithClock allows deterministic snapshot timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// Machine is the quiz session state machine for one browser tab.
//
// Every handler (user operation, countdown tick, full-screen change) runs to
// completion under mu, so events are applied in the order they arrive.
type Machine struct {
	questions []domain.Question
	store     SessionStore
	gate      FullscreenGate
	timeLimit int
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	now       func() time.Time

	mu          sync.Mutex
	state       domain.State
	index       int
	remaining   int
	selections  []domain.AnswerSet
	score       *int
	completedBy domain.Trigger
	fullscreen  bool
	countdown   *countdown
	closed      bool
	releaseGate func()
	subscribers map[chan domain.Snapshot]struct{}
}

// NewMachine creates a fresh NotStarted session over the loaded questions.
// Call Resume to reconstruct a persisted attempt.
func NewMachine(questions []domain.Question, store SessionStore, gate FullscreenGate, opts ...Option) *Machine {
	m := &Machine{
		questions:   questions,
		store:       store,
		gate:        gate,
		timeLimit:   DefaultTimeLimit,
		interval:    time.Second,
		newTicker:   NewTimeTicker,
		now:         time.Now,
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetLocked()
	m.fullscreen = gate.IsActive()
	m.releaseGate = gate.OnChange(m.fullscreenChanged)
	return m
}

// Resume reconstructs an in-progress attempt from the store. A record that is
// absent or not in progress leaves the session fresh and clears stale keys.
// Without questions the session stays fresh and the store is left untouched.
func (m *Machine) Resume(ctx context.Context) domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.snapshotLocked()
	}

	if len(m.questions) == 0 {
		// Questions failed to load; keep any record for a later reconnect.
		m.resetLocked()
		return m.broadcastLocked()
	}

	rec, found := loadRecord(ctx, m.store, m.questions, m.timeLimit)
	if !rec.InProgress {
		m.resetLocked()
		if found {
			m.clearLocked(ctx)
		}
		return m.broadcastLocked()
	}

	m.state = domain.InProgress
	m.index = rec.CurrentIndex
	m.remaining = rec.RemainingSeconds
	m.selections = rec.Selections
	m.score = nil
	m.completedBy = ""

	if m.remaining == 0 {
		// The budget ran out while the tab was gone.
		m.completeLocked(ctx, domain.TriggerTimeout)
		return m.broadcastLocked()
	}
	m.startCountdownLocked()
	log.Printf("session resumed index=%d remaining=%d", m.index, m.remaining)
	return m.broadcastLocked()
}

// Start begins a new attempt and requests full screen.
func (m *Machine) Start(ctx context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.Snapshot{}, domain.ErrSessionClosed
	}
	if m.state != domain.NotStarted {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, domain.ErrInvalidTransition
	}
	if len(m.questions) == 0 {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, domain.ErrNoQuestions
	}

	m.resetLocked()
	m.state = domain.InProgress
	m.startCountdownLocked()
	m.persistLocked(ctx)
	m.broadcastLocked()
	m.mu.Unlock()

	m.requestFullscreen()
	return m.Snapshot(), nil
}

// RequestFullscreen re-issues the full-screen request while an attempt is gated.
func (m *Machine) RequestFullscreen() domain.Snapshot {
	m.mu.Lock()
	inProgress := !m.closed && m.state == domain.InProgress
	m.mu.Unlock()
	if inProgress {
		m.requestFullscreen()
	}
	return m.Snapshot()
}

func (m *Machine) requestFullscreen() {
	if err := m.gate.Request(); err != nil {
		log.Printf("fullscreen request denied: %v", err)
	}
}

// ToggleAnswer flips choice in the selection of questionIndex. Out-of-range
// indexes, unknown choices and calls outside an attempt are no-ops.
func (m *Machine) ToggleAnswer(ctx context.Context, questionIndex int, choice string) domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != domain.InProgress {
		return m.snapshotLocked()
	}
	if questionIndex < 0 || questionIndex >= len(m.questions) || !m.questions[questionIndex].HasChoice(choice) {
		return m.snapshotLocked()
	}
	m.selections[questionIndex].Toggle(choice)
	m.persistLocked(ctx)
	return m.broadcastLocked()
}

// Next moves to the following question; no-op on the last one.
func (m *Machine) Next(ctx context.Context) domain.Snapshot {
	return m.move(ctx, 1)
}

// Previous moves to the preceding question; no-op on the first one.
func (m *Machine) Previous(ctx context.Context) domain.Snapshot {
	return m.move(ctx, -1)
}

func (m *Machine) move(ctx context.Context, delta int) domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != domain.InProgress {
		return m.snapshotLocked()
	}
	target := m.index + delta
	if target < 0 || target >= len(m.questions) {
		return m.snapshotLocked()
	}
	m.index = target
	m.persistLocked(ctx)
	return m.broadcastLocked()
}

// Submit completes the attempt and scores it.
func (m *Machine) Submit(ctx context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.Snapshot{}, domain.ErrSessionClosed
	}
	if m.state != domain.InProgress {
		return m.snapshotLocked(), domain.ErrInvalidTransition
	}
	m.completeLocked(ctx, domain.TriggerSubmit)
	return m.broadcastLocked(), nil
}

// Reset returns a completed session to NotStarted without reloading questions.
func (m *Machine) Reset(ctx context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.Snapshot{}, domain.ErrSessionClosed
	}
	if m.state != domain.Completed {
		return m.snapshotLocked(), domain.ErrInvalidTransition
	}
	m.resetLocked()
	m.clearLocked(ctx)
	return m.broadcastLocked(), nil
}

// Close tears the session down: the countdown and gate listener are released
// and subscriber channels closed. The persisted record is kept for resume.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopCountdownLocked()
	if m.releaseGate != nil {
		m.releaseGate()
		m.releaseGate = nil
	}
	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
}

// ConfirmLeave reports whether navigating away should ask for confirmation.
func (m *Machine) ConfirmLeave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.InProgress
}

// Snapshot returns the current observable state.
func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Questions returns the loaded question set.
func (m *Machine) Questions() []domain.Question {
	return m.questions
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke cancel to avoid leaks.
func (m *Machine) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subscribers[ch] = struct{}{}
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Machine) tick(c *countdown) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.countdown != c || m.state != domain.InProgress {
		return
	}
	ctx := context.Background()
	m.remaining--
	if m.remaining <= 0 {
		m.remaining = 0
		m.completeLocked(ctx, domain.TriggerTimeout)
	} else {
		m.persistLocked(ctx)
	}
	m.broadcastLocked()
}

func (m *Machine) fullscreenChanged(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.fullscreen == active {
		return
	}
	m.fullscreen = active
	m.broadcastLocked()
}

// startCountdownLocked cancels any running timer before starting a new one.
func (m *Machine) startCountdownLocked() {
	m.stopCountdownLocked()
	m.countdown = startCountdown(m.newTicker(m.interval), m.tick)
}

func (m *Machine) stopCountdownLocked() {
	if m.countdown != nil {
		m.countdown.stop()
		m.countdown = nil
	}
}

// completeLocked is shared by submit and expiry.
func (m *Machine) completeLocked(ctx context.Context, trigger domain.Trigger) {
	m.stopCountdownLocked()
	score := Score(m.questions, m.selections)
	m.score = &score
	m.state = domain.Completed
	m.completedBy = trigger
	m.clearLocked(ctx)
	log.Printf("session completed trigger=%s score=%d/%d remaining=%d", trigger, score, len(m.questions), m.remaining)
}

func (m *Machine) resetLocked() {
	m.stopCountdownLocked()
	m.state = domain.NotStarted
	m.index = 0
	m.remaining = m.timeLimit
	m.selections = domain.EmptySelections(len(m.questions))
	m.score = nil
	m.completedBy = ""
}

func (m *Machine) persistLocked(ctx context.Context) {
	rec := record{
		CurrentIndex:     m.index,
		RemainingSeconds: m.remaining,
		InProgress:       m.state == domain.InProgress,
		Selections:       m.selections,
	}
	if err := saveRecord(ctx, m.store, rec); err != nil {
		log.Printf("persist session: %v", err)
	}
}

func (m *Machine) clearLocked(ctx context.Context) {
	if err := clearRecord(ctx, m.store); err != nil {
		log.Printf("clear session: %v", err)
	}
}

func (m *Machine) broadcastLocked() domain.Snapshot {
	snap := m.snapshotLocked()
	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale update so a slow reader never blocks a handler.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (m *Machine) snapshotLocked() domain.Snapshot {
	selections := make([][]string, len(m.selections))
	for i, set := range m.selections {
		selections[i] = set.Sorted()
	}
	var score *int
	if m.score != nil {
		v := *m.score
		score = &v
	}
	return domain.Snapshot{
		State:            m.state,
		CurrentIndex:     m.index,
		QuestionCount:    len(m.questions),
		RemainingSeconds: m.remaining,
		TimeLimitSeconds: m.timeLimit,
		Selections:       selections,
		Score:            score,
		CompletedBy:      m.completedBy,
		FullscreenActive: m.fullscreen,
		Gated:            m.state == domain.InProgress && !m.fullscreen,
		ConfirmLeave:     m.state == domain.InProgress,
		UpdatedAt:        m.now(),
	}
}
