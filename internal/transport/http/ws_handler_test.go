package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"edupath-service/internal/domain"
)

func TestWebSocketStandingsFeed(t *testing.T) {
	env := newTestEnv(t)
	studentToken := env.seedUser(t, "s1", "Sam", domain.RoleStudent)
	seedSubmittableLesson(t, env)

	wsURL := "ws" + env.server.URL[len("http"):] + "/ws?groupId=g1&token=" + studentToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The first frame is the current standings snapshot, empty before any
	// submission.
	snap := readStandings(t, conn)
	if snap.GroupID != "g1" || len(snap.Entries) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	status, body := env.do(t, http.MethodPost, "/api/results/submit", studentToken, map[string]any{
		"groupId":  "g1",
		"lessonId": "l1",
		"answers":  []map[string]string{{"questionId": "q1", "answer": "1"}},
	})
	if status != http.StatusCreated {
		t.Fatalf("submit status = %d (%s)", status, body)
	}

	snap = readStandings(t, conn)
	if len(snap.Entries) != 1 {
		t.Fatalf("got %d entries after submit, want 1", len(snap.Entries))
	}
	if e := snap.Entries[0]; e.UserID != "s1" || e.DisplayName != "Sam" || e.Points != 10 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestWebSocketSeedsStoredStandings(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "s1", "Sam", domain.RoleStudent)

	// Pre-existing aggregates in the store must show up in the first frame.
	err := env.store.CreateUser(context.Background(), domain.User{
		ID:          "s2",
		Name:        "Sol",
		Email:       "sol@example.com",
		Role:        domain.RoleStudent,
		GroupPoints: map[string]int{"g1": 30},
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	wsURL := "ws" + env.server.URL[len("http"):] + "/ws?groupId=g1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	snap := readStandings(t, conn)
	if len(snap.Entries) != 1 || snap.Entries[0].UserID != "s2" || snap.Entries[0].Points != 30 {
		t.Fatalf("unexpected seeded snapshot: %+v", snap)
	}
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "s1", "Sam", domain.RoleStudent)

	base := "ws" + env.server.URL[len("http"):]

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws?token="+token, nil)
	if err == nil {
		t.Fatal("expected dial without groupId to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing groupId, got %+v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws?groupId=g1&token=garbage", nil)
	if err == nil {
		t.Fatal("expected dial with a bad token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %+v", resp)
	}
}

func readStandings(t *testing.T, conn *websocket.Conn) domain.GroupStandings {
	t.Helper()
	var msg struct {
		Type    string                `json:"type"`
		Payload domain.GroupStandings `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "standings" {
		t.Fatalf("expected standings frame, got %s", msg.Type)
	}
	return msg.Payload
}
