package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"proctorhub/internal/model"
)

// fakeSessionRepo is an in-memory SessionRepo. Mutations hold the lock
// for the whole read-modify-write, matching the per-document atomicity
// the Mongo implementation gets from $inc/$max.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.CandidateSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.CandidateSession)}
}

func key(examID, candidateID string) string {
	return examID + "/" + candidateID
}

func (r *fakeSessionRepo) Upsert(ctx context.Context, examID, candidateID string, profile model.CandidateProfile) (*model.CandidateSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		s = &model.CandidateSession{
			ExamID:          examID,
			CandidateID:     candidateID,
			HighestSeverity: model.SeverityNone,
			JoinedAt:        time.Now(),
		}
		r.sessions[key(examID, candidateID)] = s
	}
	s.OrganizationID = profile.OrganizationID
	s.CandidateName = profile.Name
	s.CandidateEmail = profile.Email
	s.Accommodation = profile.Accommodation
	s.TotalQuestions = profile.TotalQuestions
	s.Status = model.SessionActive
	s.UpdatedAt = time.Now()

	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) ListByExam(ctx context.Context, examID string) ([]*model.CandidateSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CandidateSession
	for _, s := range r.sessions {
		if s.ExamID == examID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CandidateName < out[j].CandidateName
	})
	return out, nil
}

func (r *fakeSessionRepo) UpdateStatus(ctx context.Context, examID, candidateID string, status model.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		return fmt.Errorf("session not found")
	}
	s.Status = status
	return nil
}

func (r *fakeSessionRepo) UpdateProgress(ctx context.Context, examID, candidateID string, questionsAnswered int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		return fmt.Errorf("session not found")
	}
	s.QuestionsAnswered = questionsAnswered
	return nil
}

func (r *fakeSessionRepo) ApplyViolationEffect(ctx context.Context, examID, candidateID string, severity model.Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		return fmt.Errorf("session not found")
	}
	s.ViolationCount++
	if severity > s.HighestSeverity {
		s.HighestSeverity = severity
	}
	return nil
}

func (r *fakeSessionRepo) AddExtraTime(ctx context.Context, examID, candidateID string, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		return fmt.Errorf("session not found")
	}
	s.ExtraTimeMinutes += minutes
	return nil
}

func (r *fakeSessionRepo) SetConnection(ctx context.Context, examID, candidateID, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(examID, candidateID)]
	if !ok {
		return fmt.Errorf("session not found")
	}
	s.ConnectionID = connectionID
	return nil
}

// fakeViolationRepo is an in-memory append-only ViolationRepo.
type fakeViolationRepo struct {
	mu   sync.Mutex
	rows []*model.ViolationLog
}

func newFakeViolationRepo() *fakeViolationRepo {
	return &fakeViolationRepo{}
}

func (r *fakeViolationRepo) Insert(ctx context.Context, violation *model.ViolationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *violation
	r.rows = append(r.rows, &copied)
	return nil
}

func (r *fakeViolationRepo) ListByExam(ctx context.Context, examID string, limit int) ([]*model.ViolationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ViolationLog
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].ExamID == examID {
			copied := *r.rows[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeViolationRepo) ListByCandidate(ctx context.Context, examID, candidateID string) ([]*model.ViolationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ViolationLog
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].ExamID == examID && r.rows[i].CandidateID == candidateID {
			copied := *r.rows[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeViolationRepo) CountByCandidate(ctx context.Context, examID, candidateID string) (int64, error) {
	rows, err := r.ListByCandidate(ctx, examID, candidateID)
	return int64(len(rows)), err
}

// broadcastEvent records one fan-out call for assertions.
type broadcastEvent struct {
	Scope       string // "supervisors", "candidate", "candidates"
	ExamID      string
	CandidateID string
	MsgType     string
	Payload     interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *fakeBroadcaster) BroadcastToSupervisors(examID string, msgType string, payload interface{}) {
	b.record(broadcastEvent{Scope: "supervisors", ExamID: examID, MsgType: msgType, Payload: payload})
}

func (b *fakeBroadcaster) BroadcastToCandidate(examID, candidateID string, msgType string, payload interface{}) {
	b.record(broadcastEvent{Scope: "candidate", ExamID: examID, CandidateID: candidateID, MsgType: msgType, Payload: payload})
}

func (b *fakeBroadcaster) BroadcastToCandidates(examID string, msgType string, payload interface{}) {
	b.record(broadcastEvent{Scope: "candidates", ExamID: examID, MsgType: msgType, Payload: payload})
}

func (b *fakeBroadcaster) record(ev broadcastEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *fakeBroadcaster) all() []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *fakeBroadcaster) ofType(msgType string) []broadcastEvent {
	var out []broadcastEvent
	for _, ev := range b.all() {
		if ev.MsgType == msgType {
			out = append(out, ev)
		}
	}
	return out
}
