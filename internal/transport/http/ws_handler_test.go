package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type snapshotView struct {
	State            string     `json:"state"`
	CurrentIndex     int        `json:"currentIndex"`
	RemainingSeconds int        `json:"remainingSeconds"`
	Selections       [][]string `json:"selections"`
	Score            *int       `json:"score"`
	Gated            bool       `json:"gated"`
	ConfirmLeave     bool       `json:"confirmLeave"`
	Clock            string     `json:"clock"`
	Question         *struct {
		Number  int    `json:"number"`
		Text    string `json:"text"`
		Choices []struct {
			Text    string `json:"text"`
			Checked bool   `json:"checked"`
		} `json:"choices"`
	} `json:"question"`
}

func TestWebSocketQuizFlow(t *testing.T) {
	server, profiles := newTestServer()
	defer server.Close()

	conn := dial(t, server, "p1")
	defer conn.Close()

	msg := readUntil(t, conn, "session")
	var session sessionPayload
	_ = json.Unmarshal(msg.Payload, &session)
	if session.ProfileID != "p1" {
		t.Fatalf("expected profile p1, got %q", session.ProfileID)
	}
	snap := readSnapshot(t, conn, func(s snapshotView) bool { return true })
	if snap.State != "not_started" || snap.Clock != "10:00" {
		t.Fatalf("expected fresh session, got %+v", snap)
	}

	send(t, conn, "start", nil)
	requested, started := false, false
	for i := 0; i < 50 && !(requested && started); i++ {
		msg := readUntil(t, conn, "")
		switch msg.Type {
		case "fullscreenRequest":
			requested = true
		case "snapshot":
			var s snapshotView
			_ = json.Unmarshal(msg.Payload, &s)
			if s.State == "in_progress" {
				started = true
				if !s.Gated || s.Question != nil {
					t.Fatalf("expected question hidden until full screen, got %+v", s)
				}
			}
		}
	}
	if !requested || !started {
		t.Fatalf("expected fullscreen request and started snapshot, got requested=%v started=%v", requested, started)
	}

	send(t, conn, "fullscreen", map[string]any{"active": true})
	snap = readSnapshot(t, conn, func(s snapshotView) bool { return !s.Gated })
	if snap.Question == nil || snap.Question.Text != "Pick A" || len(snap.Question.Choices) != 3 {
		t.Fatalf("expected first question, got %+v", snap.Question)
	}

	send(t, conn, "toggle", map[string]any{"choice": "A"})
	snap = readSnapshot(t, conn, func(s snapshotView) bool { return len(s.Selections[0]) == 1 })
	if !snap.Question.Choices[0].Checked {
		t.Fatalf("expected A checked, got %+v", snap.Question.Choices)
	}

	send(t, conn, "next", nil)
	readSnapshot(t, conn, func(s snapshotView) bool { return s.CurrentIndex == 1 })
	send(t, conn, "toggle", map[string]any{"questionIndex": 1, "choice": "B"})
	readSnapshot(t, conn, func(s snapshotView) bool { return len(s.Selections[1]) == 1 })

	v, ok, _ := profiles.ForProfile("p1").Get(context.Background(), app.KeyCurrentIndex)
	if !ok || v != "1" {
		t.Fatalf("expected persisted index 1, got %q ok=%v", v, ok)
	}

	send(t, conn, "submit", nil)
	snap = readSnapshot(t, conn, func(s snapshotView) bool { return s.State == "completed" })
	if snap.Score == nil || *snap.Score != 1 || snap.ConfirmLeave {
		t.Fatalf("expected score 1 of 2, got %+v", snap)
	}

	send(t, conn, "reset", nil)
	readSnapshot(t, conn, func(s snapshotView) bool { return s.State == "not_started" })
}

func TestWebSocketResumesAfterReconnect(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	conn := dial(t, server, "p2")
	readSnapshot(t, conn, func(s snapshotView) bool { return true })
	send(t, conn, "start", nil)
	send(t, conn, "fullscreen", map[string]any{"active": true})
	send(t, conn, "next", nil)
	send(t, conn, "toggle", map[string]any{"choice": "C"})
	readSnapshot(t, conn, func(s snapshotView) bool { return len(s.Selections[1]) == 1 })
	conn.Close()

	// Each toggle is persisted before its snapshot goes out, so the record is complete.
	conn = dial(t, server, "p2")
	defer conn.Close()
	snap := readSnapshot(t, conn, func(s snapshotView) bool { return true })
	if snap.State != "in_progress" || snap.CurrentIndex != 1 || len(snap.Selections[1]) != 1 || snap.Selections[1][0] != "C" {
		t.Fatalf("unexpected resumed state %+v", snap)
	}
	if !snap.Gated {
		t.Fatalf("expected resumed session gated until the tab reports full screen")
	}
}

func TestWebSocketRejectsInvalidOperations(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	conn := dial(t, server, "")
	defer conn.Close()

	msg := readUntil(t, conn, "session")
	var session sessionPayload
	_ = json.Unmarshal(msg.Payload, &session)
	if session.ProfileID == "" {
		t.Fatalf("expected assigned profile id")
	}

	send(t, conn, "submit", nil)
	msg = readUntil(t, conn, "error")
	if !strings.Contains(string(msg.Payload), domain.ErrInvalidTransition.Error()) {
		t.Fatalf("unexpected error payload %s", msg.Payload)
	}

	send(t, conn, "dance", nil)
	msg = readUntil(t, conn, "error")
	if !strings.Contains(string(msg.Payload), "unsupported") {
		t.Fatalf("unexpected error payload %s", msg.Payload)
	}
}

func TestQuestionsEndpoint(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/quiz/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS header")
	}
	var set domain.QuestionSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(set.Quiz) != 2 || set.Quiz[1].Answers[1] != "C" {
		t.Fatalf("unexpected set %+v", set)
	}
}

func TestWebSocketChecksOrigin(t *testing.T) {
	service := app.NewQuizService(memory.NewStaticSource(sampleQuestions()), memory.NewProfileStore())
	server := httptest.NewServer(NewRouter(service, []string{"http://localhost:5173"}))
	defer server.Close()
	u := "ws" + server.URL[len("http"):] + "/ws?profileId=p3"

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatalf("expected upgrade from foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://localhost:5173"}})
	if err != nil {
		t.Fatalf("dial allowed origin: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, "session")

	// Clients without an Origin header are not browsers and are accepted.
	plain := dial(t, server, "p4")
	defer plain.Close()
	readUntil(t, plain, "session")
}

func TestWebSocketWriteTimeoutClosesConnection(t *testing.T) {
	service := app.NewQuizService(memory.NewStaticSource(sampleQuestions()), memory.NewProfileStore())
	handler := NewWSHandler(service, nil)
	handler.writeWait = time.Nanosecond

	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		handler.ServeWS(w, r)
	}))
	defer server.Close()

	conn := dial(t, server, "p5")
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected connection closed after write deadline")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatalf("expected server to close the connection, read timed out instead")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler did not return after write failure")
	}
}

func newTestServer() (*httptest.Server, *memory.ProfileStore) {
	profiles := memory.NewProfileStore()
	service := app.NewQuizService(memory.NewStaticSource(sampleQuestions()), profiles)
	return httptest.NewServer(NewRouter(service, nil)), profiles
}

func dial(t *testing.T, server *httptest.Server, profileID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	if profileID != "" {
		u += "?profileId=" + profileID
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	for i := 0; i < 50; i++ {
		var msg envelope
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if typ == "" || msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message received", typ)
	return envelope{}
}

func readSnapshot(t *testing.T, conn *websocket.Conn, match func(snapshotView) bool) snapshotView {
	t.Helper()
	for i := 0; i < 50; i++ {
		msg := readUntil(t, conn, "snapshot")
		var snap snapshotView
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if match(snap) {
			return snap
		}
	}
	t.Fatalf("no matching snapshot received")
	return snapshotView{}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "Pick A", Choices: []string{"A", "B", "C"}, Answers: []string{"A"}},
		{Text: "Pick B and C", Choices: []string{"A", "B", "C"}, Answers: []string{"B", "C"}},
	}
}
