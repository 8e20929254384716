package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the WebSocket envelope format, both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one live socket and its room membership. Role and exam
// scope are fixed at join; CandidateID is empty for supervisors.
type Connection struct {
	ID          string
	Role        string
	ExamID      string
	CandidateID string
	Send        chan []byte
}

// Membership is the registry view of a connection, used by the
// signaling relay to resolve reply targets.
type Membership struct {
	Role        string
	ExamID      string
	CandidateID string
}

// broadcast scopes
const (
	scopeSupervisors = "supervisors"
	scopeCandidate   = "candidate"
	scopeCandidates  = "candidates"
	scopeConn        = "conn"
)

type broadcastMessage struct {
	Scope       string
	ExamID      string
	CandidateID string
	ConnID      string
	Message     *Message
}

// Hub owns the connection registry and the exam/candidate/supervisor
// rooms. All deliveries flow through one channel, so broadcasts for a
// session go out in the order their triggering events were processed.
type Hub struct {
	mu sync.RWMutex

	// conns is the connection registry: connID -> connection.
	conns map[string]*Connection
	// supervisorRooms: examID -> connID -> conn.
	supervisorRooms map[string]map[string]*Connection
	// candidateRooms: examID -> candidateID -> connID -> conn.
	candidateRooms map[string]map[string]map[string]*Connection

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *broadcastMessage
}

func NewHub() *Hub {
	h := &Hub{
		conns:           make(map[string]*Connection),
		supervisorRooms: make(map[string]map[string]*Connection),
		candidateRooms:  make(map[string]map[string]map[string]*Connection),
		register:        make(chan *Connection),
		unregister:      make(chan *Connection),
		broadcast:       make(chan *broadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn.ID] = conn
			if conn.CandidateID != "" {
				if h.candidateRooms[conn.ExamID] == nil {
					h.candidateRooms[conn.ExamID] = make(map[string]map[string]*Connection)
				}
				if h.candidateRooms[conn.ExamID][conn.CandidateID] == nil {
					h.candidateRooms[conn.ExamID][conn.CandidateID] = make(map[string]*Connection)
				}
				h.candidateRooms[conn.ExamID][conn.CandidateID][conn.ID] = conn
				log.Printf("Candidate %s connected to exam %s", conn.CandidateID, conn.ExamID)
			} else {
				if h.supervisorRooms[conn.ExamID] == nil {
					h.supervisorRooms[conn.ExamID] = make(map[string]*Connection)
				}
				h.supervisorRooms[conn.ExamID][conn.ID] = conn
				log.Printf("Supervisor connected to exam %s", conn.ExamID)
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.conns[conn.ID]; ok && existing == conn {
				delete(h.conns, conn.ID)
				close(conn.Send)
				if conn.CandidateID != "" {
					if room, ok := h.candidateRooms[conn.ExamID][conn.CandidateID]; ok {
						delete(room, conn.ID)
						if len(room) == 0 {
							delete(h.candidateRooms[conn.ExamID], conn.CandidateID)
						}
					}
					log.Printf("Candidate %s disconnected from exam %s", conn.CandidateID, conn.ExamID)
				} else {
					if room, ok := h.supervisorRooms[conn.ExamID]; ok {
						delete(room, conn.ID)
					}
					log.Printf("Supervisor disconnected from exam %s", conn.ExamID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(msg.Message)
	if err != nil {
		return
	}

	switch msg.Scope {
	case scopeSupervisors:
		for _, conn := range h.supervisorRooms[msg.ExamID] {
			send(conn, data)
		}
	case scopeCandidate:
		for _, conn := range h.candidateRooms[msg.ExamID][msg.CandidateID] {
			send(conn, data)
		}
	case scopeCandidates:
		for _, room := range h.candidateRooms[msg.ExamID] {
			for _, conn := range room {
				send(conn, data)
			}
		}
	case scopeConn:
		if conn, ok := h.conns[msg.ConnID]; ok {
			send(conn, data)
		}
	}
}

// send drops the message if the connection's buffer is full rather
// than stalling the hub loop.
func send(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
	}
}

// Register adds a connection to the registry and its rooms.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister tears down a connection's registry entry and room
// memberships.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Lookup resolves a connection ID to its membership.
func (h *Hub) Lookup(connID string) (Membership, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	if !ok {
		return Membership{}, false
	}
	return Membership{Role: conn.Role, ExamID: conn.ExamID, CandidateID: conn.CandidateID}, true
}

// BroadcastToSupervisors sends to the supervisor sub-room of an exam
// (implements service.Broadcaster).
func (h *Hub) BroadcastToSupervisors(examID string, msgType string, payload interface{}) {
	h.enqueue(&broadcastMessage{Scope: scopeSupervisors, ExamID: examID, Message: envelope(msgType, payload)})
}

// BroadcastToCandidate sends to one candidate's room (implements
// service.Broadcaster).
func (h *Hub) BroadcastToCandidate(examID, candidateID string, msgType string, payload interface{}) {
	h.enqueue(&broadcastMessage{Scope: scopeCandidate, ExamID: examID, CandidateID: candidateID, Message: envelope(msgType, payload)})
}

// BroadcastToCandidates sends to every candidate in the exam room,
// supervisors excluded (implements service.Broadcaster).
func (h *Hub) BroadcastToCandidates(examID string, msgType string, payload interface{}) {
	h.enqueue(&broadcastMessage{Scope: scopeCandidates, ExamID: examID, Message: envelope(msgType, payload)})
}

// SendToConnection sends to a single connection by ID. Used for the
// supervisor join snapshot and the signaling relay.
func (h *Hub) SendToConnection(connID string, msgType string, payload interface{}) {
	h.enqueue(&broadcastMessage{Scope: scopeConn, ConnID: connID, Message: envelope(msgType, payload)})
}

func (h *Hub) enqueue(msg *broadcastMessage) {
	h.broadcast <- msg
}

func envelope(msgType string, payload interface{}) *Message {
	data, _ := json.Marshal(payload)
	return &Message{Type: msgType, Payload: data}
}
