package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

const writeWait = 10 * time.Second

type WSHandler struct {
	service   *app.QuizService
	upgrader  websocket.Upgrader
	writeWait time.Duration
}

// NewWSHandler accepts upgrades from allowedOrigins; "*" or an empty list
// accepts any origin.
func NewWSHandler(service *app.QuizService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		writeWait: writeWait,
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(origin)] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Not a browser.
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type togglePayload struct {
	QuestionIndex *int   `json:"questionIndex"`
	Choice        string `json:"choice"`
}

type fullscreenPayload struct {
	Active bool `json:"active"`
}

type sessionPayload struct {
	ProfileID string `json:"profileId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type choiceView struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

type questionView struct {
	Number      int          `json:"number"`
	Text        string       `json:"text"`
	Choices     []choiceView `json:"choices"`
	HasPrevious bool         `json:"hasPrevious"`
	HasNext     bool         `json:"hasNext"`
}

type snapshotPayload struct {
	domain.Snapshot
	Clock    string        `json:"clock"`
	LowTime  bool          `json:"lowTime"`
	Question *questionView `json:"question,omitempty"`
}

// renderSnapshot attaches the current question unless the gate hides it.
func renderSnapshot(snap domain.Snapshot, questions []domain.Question) snapshotPayload {
	payload := snapshotPayload{Snapshot: snap, Clock: snap.Clock(), LowTime: snap.LowTime()}
	if snap.State != domain.InProgress || snap.Gated || snap.CurrentIndex >= len(questions) {
		return payload
	}
	q := questions[snap.CurrentIndex]
	checked := domain.NewAnswerSet(snap.Selections[snap.CurrentIndex]...)
	view := &questionView{
		Number:      snap.CurrentIndex + 1,
		Text:        q.Text,
		Choices:     make([]choiceView, 0, len(q.Choices)),
		HasPrevious: snap.CurrentIndex > 0,
		HasNext:     snap.CurrentIndex < len(questions)-1,
	}
	for _, c := range q.Choices {
		view.Choices = append(view.Choices, choiceView{Text: c, Checked: checked.Has(c)})
	}
	payload.Question = view
	return payload
}

// ServeWS upgrades HTTP requests to websockets and drives one session machine
// per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if profileID == "" {
		profileID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error profile=%s: %v", profileID, err)
				// Unblock the read loop, then keep draining so producers never
				// block on a dead connection.
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{ProfileID: profileID}}

	gate := newWSGate(send)
	machine := h.service.Open(r.Context(), profileID, gate)
	questions := machine.Questions()
	updates, cancel := machine.Subscribe()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: renderSnapshot(snap, questions)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	sendError := func(msg string) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
	}

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if _, err := machine.Start(ctx); err != nil {
				sendError(err.Error())
			}
		case "toggle":
			var payload togglePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid toggle payload")
				continue
			}
			idx := machine.Snapshot().CurrentIndex
			if payload.QuestionIndex != nil {
				idx = *payload.QuestionIndex
			}
			machine.ToggleAnswer(ctx, idx, payload.Choice)
		case "next":
			machine.Next(ctx)
		case "previous":
			machine.Previous(ctx)
		case "submit":
			if _, err := machine.Submit(ctx); err != nil {
				sendError(err.Error())
			}
		case "reset":
			if _, err := machine.Reset(ctx); err != nil {
				sendError(err.Error())
			}
		case "fullscreen":
			var payload fullscreenPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid fullscreen payload")
				continue
			}
			gate.set(payload.Active)
		case "requestFullscreen":
			machine.RequestFullscreen()
		default:
			sendError("unsupported message type")
		}
	}

	if machine.ConfirmLeave() {
		log.Printf("ws closed with attempt in progress profile=%s", profileID)
	}
	machine.Close()
	cancel()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

