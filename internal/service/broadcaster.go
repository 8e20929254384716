package service

// Broadcaster is the real-time fan-out used by the services. The ws hub
// implements it; the interface lives here to avoid an import cycle.
type Broadcaster interface {
	// BroadcastToSupervisors delivers to the supervisor sub-room of an exam.
	BroadcastToSupervisors(examID string, msgType string, payload interface{})
	// BroadcastToCandidate delivers to one candidate's room.
	BroadcastToCandidate(examID, candidateID string, msgType string, payload interface{})
	// BroadcastToCandidates delivers to every candidate in the exam room,
	// supervisors excluded.
	BroadcastToCandidates(examID string, msgType string, payload interface{})
}
