package ws

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestConn(id, role, examID, candidateID string) *Connection {
	return &Connection{
		ID:          id,
		Role:        role,
		ExamID:      examID,
		CandidateID: candidateID,
		Send:        make(chan []byte, 16),
	}
}

func receive(t *testing.T, conn *Connection) *Message {
	t.Helper()
	select {
	case data := <-conn.Send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Malformed message: %v", err)
		}
		return &msg
	case <-time.After(1 * time.Second):
		t.Fatalf("Timeout waiting for message on %s", conn.ID)
		return nil
	}
}

func assertSilent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("Connection %s should not have received: %s", conn.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCandidateRoomIsolation(t *testing.T) {
	hub := NewHub()
	supervisor := newTestConn("s1", "supervisor", "E1", "")
	candA := newTestConn("a1", "candidate", "E1", "A")
	candB := newTestConn("b1", "candidate", "E1", "B")
	hub.Register(supervisor)
	hub.Register(candA)
	hub.Register(candB)

	hub.BroadcastToCandidate("E1", "A", "proctor_message", map[string]string{"message": "hi"})

	msg := receive(t, candA)
	if msg.Type != "proctor_message" {
		t.Errorf("Expected proctor_message, got %s", msg.Type)
	}
	assertSilent(t, candB)
	assertSilent(t, supervisor)
}

func TestExamBroadcastExcludesSupervisors(t *testing.T) {
	hub := NewHub()
	supervisor := newTestConn("s1", "supervisor", "E1", "")
	candA := newTestConn("a1", "candidate", "E1", "A")
	candB := newTestConn("b1", "candidate", "E1", "B")
	other := newTestConn("c1", "candidate", "E2", "C")
	hub.Register(supervisor)
	hub.Register(candA)
	hub.Register(candB)
	hub.Register(other)

	hub.BroadcastToCandidates("E1", "proctor_message", map[string]string{"message": "10 minutes left"})

	receive(t, candA)
	receive(t, candB)
	assertSilent(t, supervisor)
	assertSilent(t, other)
}

func TestSupervisorSubRoom(t *testing.T) {
	hub := NewHub()
	sup1 := newTestConn("s1", "supervisor", "E1", "")
	sup2 := newTestConn("s2", "supervisor", "E1", "")
	cand := newTestConn("a1", "candidate", "E1", "A")
	otherSup := newTestConn("s3", "supervisor", "E2", "")
	hub.Register(sup1)
	hub.Register(sup2)
	hub.Register(cand)
	hub.Register(otherSup)

	hub.BroadcastToSupervisors("E1", "violation_logged", map[string]string{"type": "tab-switch"})

	receive(t, sup1)
	receive(t, sup2)
	assertSilent(t, cand)
	assertSilent(t, otherSup)
}

func TestSendToConnection(t *testing.T) {
	hub := NewHub()
	sup := newTestConn("s1", "supervisor", "E1", "")
	cand := newTestConn("a1", "candidate", "E1", "A")
	hub.Register(sup)
	hub.Register(cand)

	hub.SendToConnection("s1", "session_snapshot", []string{})

	msg := receive(t, sup)
	if msg.Type != "session_snapshot" {
		t.Errorf("Expected session_snapshot, got %s", msg.Type)
	}
	assertSilent(t, cand)
}

func TestOrderingWithinSession(t *testing.T) {
	hub := NewHub()
	sup := newTestConn("s1", "supervisor", "E1", "")
	hub.Register(sup)

	hub.BroadcastToSupervisors("E1", "violation_logged", 1)
	hub.BroadcastToSupervisors("E1", "session_update", 2)
	hub.BroadcastToSupervisors("E1", "violation_logged", 3)
	hub.BroadcastToSupervisors("E1", "session_update", 4)

	want := []string{"violation_logged", "session_update", "violation_logged", "session_update"}
	for i, expected := range want {
		msg := receive(t, sup)
		if msg.Type != expected {
			t.Errorf("Message %d: expected %s, got %s", i, expected, msg.Type)
		}
	}
}

// waitMembership polls until the hub loop has applied a registration
// or teardown, since Register and Unregister hand off to the loop.
func waitMembership(t *testing.T, hub *Hub, connID string, present bool) {
	t.Helper()
	deadline := time.Now().Add(1 * time.Second)
	for {
		if _, ok := hub.Lookup(connID); ok == present {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Connection %s: expected present=%v", connID, present)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnregisterTearsDownMembership(t *testing.T) {
	hub := NewHub()
	cand := newTestConn("a1", "candidate", "E1", "A")
	hub.Register(cand)
	waitMembership(t, hub, "a1", true)

	hub.Unregister(cand)
	waitMembership(t, hub, "a1", false)

	// Messages to the gone candidate go nowhere and do not block.
	hub.BroadcastToCandidate("E1", "A", "proctor_message", nil)
}

func TestReconnectLastWriterWins(t *testing.T) {
	hub := NewHub()
	first := newTestConn("a1", "candidate", "E1", "A")
	second := newTestConn("a2", "candidate", "E1", "A")
	hub.Register(first)
	hub.Register(second)

	// Both connections are in the candidate room until the stale one is
	// torn down.
	hub.Unregister(first)
	waitMembership(t, hub, "a1", false)

	hub.BroadcastToCandidate("E1", "A", "proctor_message", map[string]string{"message": "hi"})
	receive(t, second)
}

func TestLookupMembership(t *testing.T) {
	hub := NewHub()
	cand := newTestConn("a1", "candidate", "E1", "A")
	hub.Register(cand)
	waitMembership(t, hub, "a1", true)

	m, ok := hub.Lookup("a1")
	if !ok {
		t.Fatal("Lookup failed for registered connection")
	}
	if m.Role != "candidate" || m.ExamID != "E1" || m.CandidateID != "A" {
		t.Errorf("Wrong membership: %+v", m)
	}

	if _, ok := hub.Lookup("missing"); ok {
		t.Error("Lookup should fail for unknown connection")
	}
}
