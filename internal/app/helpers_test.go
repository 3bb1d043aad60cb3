package app_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// tickers hands out manual tickers and remembers them in creation order.
type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (f *tickers) New(time.Duration) app.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	f.all = append(f.all, t)
	return t
}

func (f *tickers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

func (f *tickers) last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all[len(f.all)-1]
}

type fakeGate struct {
	mu        sync.Mutex
	active    bool
	grant     bool
	requests  int
	nextID    int
	listeners map[int]func(bool)
}

func newFakeGate(grant bool) *fakeGate {
	return &fakeGate{grant: grant, listeners: make(map[int]func(bool))}
}

func (g *fakeGate) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *fakeGate) Request() error {
	g.mu.Lock()
	g.requests++
	grant := g.grant
	g.mu.Unlock()
	if !grant {
		return errors.New("denied")
	}
	g.set(true)
	return nil
}

func (g *fakeGate) OnChange(fn func(bool)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *fakeGate) listenerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

func (g *fakeGate) set(active bool) {
	g.mu.Lock()
	g.active = active
	fns := make([]func(bool), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(active)
	}
}

type harness struct {
	machine *app.Machine
	store   *memory.SessionStore
	gate    *fakeGate
	tickers *tickers
}

func newHarness(t *testing.T, questions []domain.Question, opts ...app.Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, questions, memory.NewSessionStore(), opts...)
}

func newHarnessWithStore(t *testing.T, questions []domain.Question, store *memory.SessionStore, opts ...app.Option) *harness {
	t.Helper()
	h := &harness{store: store, gate: newFakeGate(true), tickers: &tickers{}}
	opts = append([]app.Option{app.WithTicker(h.tickers.New)}, opts...)
	h.machine = app.NewMachine(questions, store, h.gate, opts...)
	t.Cleanup(h.machine.Close)
	return h
}

// tick delivers one timer fire and waits until the machine has applied it.
func (h *harness) tick(t *testing.T, sub <-chan domain.Snapshot) domain.Snapshot {
	t.Helper()
	drain(sub)
	h.tickers.last().ch <- time.Now()
	select {
	case snap := <-sub:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for tick")
		return domain.Snapshot{}
	}
}

func drain(sub <-chan domain.Snapshot) {
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{Text: "Pick A", Choices: []string{"A", "B", "C"}, Answers: []string{"A"}},
		{Text: "Pick B and C", Choices: []string{"A", "B", "C"}, Answers: []string{"B", "C"}},
	}
}

func fiveQuestions() []domain.Question {
	qs := make([]domain.Question, 5)
	for i := range qs {
		qs[i] = domain.Question{Text: "Question", Choices: []string{"A", "B", "C", "D"}, Answers: []string{"A", "D"}}
	}
	return qs
}
