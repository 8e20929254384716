package model

import "time"

type SessionStatus string

const (
	SessionWaiting      SessionStatus = "waiting"
	SessionActive       SessionStatus = "active"
	SessionIdle         SessionStatus = "idle"
	SessionSubmitted    SessionStatus = "submitted"
	SessionDisconnected SessionStatus = "disconnected"
	SessionTerminated   SessionStatus = "terminated"
)

// CandidateSession is the durable per-(exam, candidate) record. It is
// created on the first join and outlives the live connection: reconnects
// rebind ConnectionID but keep the counters.
type CandidateSession struct {
	ExamID         string        `json:"examId" bson:"examId"`
	CandidateID    string        `json:"candidateId" bson:"candidateId"`
	OrganizationID string        `json:"organizationId" bson:"organizationId"`
	CandidateName  string        `json:"candidateName" bson:"candidateName"`
	CandidateEmail string        `json:"candidateEmail" bson:"candidateEmail"`
	Accommodation  bool          `json:"hasAccommodation" bson:"hasAccommodation"`
	Status         SessionStatus `json:"status" bson:"status"`

	QuestionsAnswered int `json:"questionsAnswered" bson:"questionsAnswered"`
	TotalQuestions    int `json:"totalQuestions" bson:"totalQuestions"`

	// ViolationCount and HighestSeverity always reflect the ViolationLog
	// rows for this pair; both are monotonic for the life of the session.
	ViolationCount  int      `json:"violationCount" bson:"violationCount"`
	HighestSeverity Severity `json:"highestSeverity" bson:"highestSeverity"`

	ExtraTimeMinutes int `json:"extraTimeMinutes" bson:"extraTimeMinutes"`

	// ConnectionID is volatile transport state, last-writer-wins on
	// reconnect.
	ConnectionID string `json:"connectionId,omitempty" bson:"connectionId,omitempty"`

	JoinedAt  time.Time `json:"joinedAt" bson:"joinedAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CandidateProfile carries the join-time profile fields for the upsert.
type CandidateProfile struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"candidateName"`
	Email          string `json:"candidateEmail"`
	Accommodation  bool   `json:"hasAccommodation"`
	TotalQuestions int    `json:"totalQuestions"`
}
