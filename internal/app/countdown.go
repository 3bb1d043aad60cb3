package app

import (
	"sync"
	"time"
)

// Ticker is the platform timer facility driving the countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// countdown is the handle of one running timer. The machine owns at most one.
type countdown struct {
	ticker   Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func startCountdown(ticker Ticker, onTick func(*countdown)) *countdown {
	c := &countdown{ticker: ticker, done: make(chan struct{})}
	go c.run(onTick)
	return c
}

func (c *countdown) run(onTick func(*countdown)) {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C():
			// A tick racing with stop is discarded by the machine's handle check.
			onTick(c)
		}
	}
}

// stop is safe to call from the tick callback itself.
func (c *countdown) stop() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}
