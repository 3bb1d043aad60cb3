package http

import (
	"errors"
	"sync"
)

var errRequestQueueFull = errors.New("fullscreen request not delivered: send queue full")

// wsGate is a FullscreenGate backed by the browser tab on the other end of
// the websocket. The tab reports fullscreenchange events; requests are sent
// to it as commands.
type wsGate struct {
	send chan<- outboundMessage[any]

	mu        sync.Mutex
	active    bool
	nextID    int
	listeners map[int]func(bool)
}

func newWSGate(send chan<- outboundMessage[any]) *wsGate {
	return &wsGate{send: send, listeners: make(map[int]func(bool))}
}

func (g *wsGate) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Request asks the tab to enter full screen. It never blocks; the tab answers
// with a fullscreen message once the browser grants or denies it.
func (g *wsGate) Request() error {
	select {
	case g.send <- outboundMessage[any]{Type: "fullscreenRequest", Payload: struct{}{}}:
		return nil
	default:
		return errRequestQueueFull
	}
}

func (g *wsGate) OnChange(fn func(bool)) func() {
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

func (g *wsGate) set(active bool) {
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
