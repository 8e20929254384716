package service

import (
	"context"
	"fmt"
	"log"

	"proctorhub/internal/cache"
	"proctorhub/internal/model"
	"proctorhub/internal/repository"
)

// WebSocket message types emitted on the supervisor and candidate sides.
const (
	MsgSessionUpdate   = "session_update"
	MsgSessionSnapshot = "session_snapshot"
	MsgViolationLogged = "violation_logged"
	MsgProctorMessage  = "proctor_message"
	MsgProctorWarning  = "proctor_warning"
	MsgTimeExtended    = "time_extended"
	MsgTerminated      = "terminated"
)

// SessionService is the session registry: the authoritative per-(exam,
// candidate) state, mutated by join/status/progress/operator events.
// Every mutation commits to Mongo before anything is broadcast, so a
// supervisor never sees an update for a write that has not landed.
type SessionService struct {
	sessionRepo  repository.SessionRepo
	sessionCache cache.SessionCache
	broadcaster  Broadcaster
}

func NewSessionService(sessionRepo repository.SessionRepo, sessionCache cache.SessionCache) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		sessionCache: sessionCache,
	}
}

// SetBroadcaster sets the broadcaster for real-time events.
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Join upserts the session for a (re)joining candidate and announces the
// resulting state to supervisors. Counters survive reconnects: only the
// profile and status are touched for an existing session.
func (s *SessionService) Join(ctx context.Context, examID, candidateID string, profile model.CandidateProfile, connectionID string) (*model.CandidateSession, error) {
	session, err := s.sessionRepo.Upsert(ctx, examID, candidateID, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}
	if connectionID != "" {
		if err := s.sessionRepo.SetConnection(ctx, examID, candidateID, connectionID); err != nil {
			return nil, fmt.Errorf("failed to bind connection: %w", err)
		}
		session.ConnectionID = connectionID
	}

	s.mirror(ctx, session)
	s.broadcastSession(session)
	return session, nil
}

// SetStatus performs a direct status transition. Transitions are not
// validated against a table: any status is reachable from any status,
// matching the permissive source behavior.
func (s *SessionService) SetStatus(ctx context.Context, examID, candidateID string, status model.SessionStatus) (*model.CandidateSession, error) {
	if err := s.sessionRepo.UpdateStatus(ctx, examID, candidateID, status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	return s.refresh(ctx, examID, candidateID)
}

// UpdateProgress records the candidate's save progress and notifies
// supervisors. Monotonicity is driven by the client, not enforced here.
func (s *SessionService) UpdateProgress(ctx context.Context, examID, candidateID string, questionsAnswered int) (*model.CandidateSession, error) {
	if err := s.sessionRepo.UpdateProgress(ctx, examID, candidateID, questionsAnswered); err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	return s.refresh(ctx, examID, candidateID)
}

// GrantExtraTime adds minutes to the session's grant, tells the
// candidate, and broadcasts the updated session to supervisors.
func (s *SessionService) GrantExtraTime(ctx context.Context, examID, candidateID string, minutes int) (*model.CandidateSession, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("minutes must be positive, got %d", minutes)
	}
	if err := s.sessionRepo.AddExtraTime(ctx, examID, candidateID, minutes); err != nil {
		return nil, fmt.Errorf("failed to grant extra time: %w", err)
	}
	session, err := s.refresh(ctx, examID, candidateID)
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToCandidate(examID, candidateID, MsgTimeExtended, map[string]interface{}{
			"minutes": minutes,
			"total":   session.ExtraTimeMinutes,
		})
	}
	return session, nil
}

// Terminate marks the session terminated and signals the candidate.
// Termination is advisory: the client is trusted to stop, the server
// does not force-close the connection.
func (s *SessionService) Terminate(ctx context.Context, examID, candidateID, reason string) (*model.CandidateSession, error) {
	if err := s.sessionRepo.UpdateStatus(ctx, examID, candidateID, model.SessionTerminated); err != nil {
		return nil, fmt.Errorf("failed to terminate session: %w", err)
	}
	session, err := s.refresh(ctx, examID, candidateID)
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToCandidate(examID, candidateID, MsgTerminated, map[string]string{
			"reason": reason,
		})
	}
	return session, nil
}

// ListSessions returns all sessions for an exam ordered by candidate
// name, for the initial supervisor sync.
func (s *SessionService) ListSessions(ctx context.Context, examID string) ([]*model.CandidateSession, error) {
	return s.sessionRepo.ListByExam(ctx, examID)
}

// GetSession serves from the Redis mirror when it is warm and falls
// back to Mongo.
func (s *SessionService) GetSession(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error) {
	if s.sessionCache != nil {
		if session, err := s.sessionCache.Get(ctx, examID, candidateID); err == nil && session != nil {
			return session, nil
		}
	}
	return s.sessionRepo.Get(ctx, examID, candidateID)
}

// refresh reads the committed session back, mirrors it, and broadcasts
// it to the supervisor sub-room.
func (s *SessionService) refresh(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error) {
	session, err := s.sessionRepo.Get(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found for exam %s candidate %s", examID, candidateID)
	}
	s.mirror(ctx, session)
	s.broadcastSession(session)
	return session, nil
}

func (s *SessionService) mirror(ctx context.Context, session *model.CandidateSession) {
	if s.sessionCache == nil {
		return
	}
	// The mirror is a fast path only; a failed write is logged, not fatal.
	if err := s.sessionCache.Set(ctx, session); err != nil {
		log.Printf("[registry] failed to mirror session %s/%s: %v", session.ExamID, session.CandidateID, err)
	}
}

func (s *SessionService) broadcastSession(session *model.CandidateSession) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToSupervisors(session.ExamID, MsgSessionUpdate, session)
	}
}
