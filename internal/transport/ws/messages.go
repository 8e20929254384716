package ws

import "encoding/json"

// Error envelope type for failed operator actions.
const MsgError = "error"

// Inbound supervisor payloads.

type sendMessagePayload struct {
	CandidateID string `json:"candidateId"`
	Message     string `json:"message"`
}

type broadcastPayload struct {
	Message string `json:"message"`
}

type warningPayload struct {
	CandidateID string `json:"candidateId"`
	Message     string `json:"message"`
}

type extendTimePayload struct {
	CandidateID string `json:"candidateId"`
	Minutes     int    `json:"minutes"`
}

type terminatePayload struct {
	CandidateID string `json:"candidateId"`
	Reason      string `json:"reason"`
}

// Inbound candidate payloads.

type progressPayload struct {
	QuestionsAnswered int `json:"questionsAnswered"`
}

// Signaling relay payloads. Data is never inspected.

const MsgSignal = "signal"

const (
	SignalOffer  = "offer"
	SignalAnswer = "answer"
	SignalICE    = "ice"
)

type signalPayload struct {
	Kind string `json:"kind"`
	// TargetConnectionID addresses answers and ICE candidates directly.
	TargetConnectionID string `json:"targetConnectionId,omitempty"`
	// CandidateID addresses an offer via the candidate room, since the
	// initiating supervisor does not know the candidate's connection ID.
	CandidateID string `json:"candidateId,omitempty"`
	Data        json.RawMessage `json:"data"`
}

type signalDelivery struct {
	Kind string          `json:"kind"`
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}
