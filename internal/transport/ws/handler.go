package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"proctorhub/internal/model"
	"proctorhub/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32768
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades and drives the room protocol connections.
type Handler struct {
	hub          *Hub
	authSvc      *service.AuthService
	sessionSvc   *service.SessionService
	violationSvc *service.ViolationService
}

func NewHandler(hub *Hub, authSvc *service.AuthService, sessionSvc *service.SessionService, violationSvc *service.ViolationService) *Handler {
	return &Handler{
		hub:          hub,
		authSvc:      authSvc,
		sessionSvc:   sessionSvc,
		violationSvc: violationSvc,
	}
}

// SupervisorWS handles GET /v1/ws/exams/{examId}/supervisor. The joining
// supervisor receives the current session snapshot on this connection
// only.
func (h *Handler) SupervisorWS(w http.ResponseWriter, r *http.Request) {
	examID := mux.Vars(r)["examId"]
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateSupervisorToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.ExamID != examID {
		http.Error(w, "token not valid for this exam", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ID:     uuid.New().String(),
		Role:   service.RoleSupervisor,
		ExamID: examID,
		Send:   make(chan []byte, 256),
	}
	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)

	sessions, err := h.sessionSvc.ListSessions(r.Context(), examID)
	if err != nil {
		log.Printf("Failed to load session snapshot for exam %s: %v", examID, err)
		h.hub.SendToConnection(conn.ID, MsgError, map[string]string{"error": "failed to load sessions"})
		return
	}
	h.hub.SendToConnection(conn.ID, service.MsgSessionSnapshot, sessions)
}

// CandidateWS handles GET /v1/ws/exams/{examId}/candidate. Joining
// upserts the candidate's session and announces it to supervisors.
func (h *Handler) CandidateWS(w http.ResponseWriter, r *http.Request) {
	examID := mux.Vars(r)["examId"]
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateCandidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.ExamID != examID {
		http.Error(w, "token not valid for this exam", http.StatusForbidden)
		return
	}

	// totalQuestions comes from the exam service via the client shell.
	totalQuestions, _ := strconv.Atoi(r.URL.Query().Get("totalQuestions"))
	accommodation := r.URL.Query().Get("hasAccommodation") == "true"

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ID:          uuid.New().String(),
		Role:        service.RoleCandidate,
		ExamID:      examID,
		CandidateID: claims.CandidateID,
		Send:        make(chan []byte, 256),
	}
	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)

	profile := model.CandidateProfile{
		OrganizationID: claims.OrganizationID,
		Name:           claims.Name,
		Email:          claims.Email,
		Accommodation:  accommodation,
		TotalQuestions: totalQuestions,
	}
	if _, err := h.sessionSvc.Join(r.Context(), examID, claims.CandidateID, profile, conn.ID); err != nil {
		log.Printf("Join failed for candidate %s in exam %s: %v", claims.CandidateID, examID, err)
	}
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
		h.handleDisconnect(conn)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "malformed message")
			continue
		}
		h.handleMessage(conn, &msg)
	}
}

// handleDisconnect runs the teardown path once per connection. A
// candidate dropping marks the session disconnected and tells
// supervisors; a supervisor dropping is a pure teardown.
func (h *Handler) handleDisconnect(conn *Connection) {
	if conn.Role != service.RoleCandidate {
		return
	}
	if _, err := h.sessionSvc.SetStatus(context.Background(), conn.ExamID, conn.CandidateID, model.SessionDisconnected); err != nil {
		log.Printf("Failed to mark candidate %s disconnected: %v", conn.CandidateID, err)
	}
}

func (h *Handler) handleMessage(conn *Connection, msg *Message) {
	ctx := context.Background()

	switch msg.Type {
	case "send_message":
		if !h.requireSupervisor(conn) {
			return
		}
		var p sendMessagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(conn, "malformed payload")
			return
		}
		h.hub.BroadcastToCandidate(conn.ExamID, p.CandidateID, service.MsgProctorMessage, map[string]string{"message": p.Message})

	case "broadcast_message":
		if !h.requireSupervisor(conn) {
			return
		}
		var p broadcastPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(conn, "malformed payload")
			return
		}
		h.hub.BroadcastToCandidates(conn.ExamID, service.MsgProctorMessage, map[string]string{"message": p.Message})

	case "send_warning":
		if !h.requireSupervisor(conn) {
			return
		}
		var p warningPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(conn, "malformed payload")
			return
		}
		if _, err := h.violationSvc.Warn(ctx, conn.ExamID, p.CandidateID, p.Message); err != nil {
			h.sendError(conn, "failed to record warning")
		}

	case "extend_time":
		if !h.requireSupervisor(conn) {
			return
		}
		var p extendTimePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(conn, "malformed payload")
			return
		}
		if _, err := h.sessionSvc.GrantExtraTime(ctx, conn.ExamID, p.CandidateID, p.Minutes); err != nil {
			h.sendError(conn, "failed to extend time")
		}

	case "terminate":
		if !h.requireSupervisor(conn) {
			return
		}
		var p terminatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(conn, "malformed payload")
			return
		}
		if _, err := h.sessionSvc.Terminate(ctx, conn.ExamID, p.CandidateID, p.Reason); err != nil {
			h.sendError(conn, "failed to terminate session")
		}

	case "progress":
		if !h.requireCandidate(conn) {
			return
		}
		var p progressPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if _, err := h.sessionSvc.UpdateProgress(ctx, conn.ExamID, conn.CandidateID, p.QuestionsAnswered); err != nil {
			log.Printf("Failed to update progress for candidate %s: %v", conn.CandidateID, err)
		}

	case "leaving":
		if !h.requireCandidate(conn) {
			return
		}
		if _, err := h.sessionSvc.SetStatus(ctx, conn.ExamID, conn.CandidateID, model.SessionSubmitted); err != nil {
			log.Printf("Failed to mark candidate %s submitted: %v", conn.CandidateID, err)
		}

	case MsgSignal:
		h.relaySignal(conn, msg.Payload)

	default:
		h.sendError(conn, "unknown message type")
	}
}

// relaySignal forwards offer/answer/ICE payloads without inspecting
// them. Offers are fanned out via the candidate room; answers and ICE
// candidates are addressed by the raw target connection ID. The sender
// connection ID is stamped on so the peer can address replies.
func (h *Handler) relaySignal(conn *Connection, payload json.RawMessage) {
	var p signalPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(conn, "malformed signal")
		return
	}

	out := signalDelivery{Kind: p.Kind, From: conn.ID, Data: p.Data}

	if p.Kind == SignalOffer && p.CandidateID != "" {
		h.hub.BroadcastToCandidate(conn.ExamID, p.CandidateID, MsgSignal, out)
		return
	}
	if p.TargetConnectionID == "" {
		h.sendError(conn, "signal missing target")
		return
	}
	target, ok := h.hub.Lookup(p.TargetConnectionID)
	if !ok || target.ExamID != conn.ExamID {
		h.sendError(conn, "unknown signal target")
		return
	}
	h.hub.SendToConnection(p.TargetConnectionID, MsgSignal, out)
}

func (h *Handler) requireSupervisor(conn *Connection) bool {
	if conn.Role != service.RoleSupervisor {
		h.sendError(conn, "supervisor role required")
		return false
	}
	return true
}

func (h *Handler) requireCandidate(conn *Connection) bool {
	if conn.Role != service.RoleCandidate {
		h.sendError(conn, "candidate role required")
		return false
	}
	return true
}

func (h *Handler) sendError(conn *Connection, message string) {
	h.hub.SendToConnection(conn.ID, MsgError, map[string]string{"error": message})
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
