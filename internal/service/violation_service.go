package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"proctorhub/internal/cache"
	"proctorhub/internal/model"
	"proctorhub/internal/repository"
)

// ViolationReport is a violation candidate arriving from a detector or
// an operator action.
type ViolationReport struct {
	Type        string         `json:"type"`
	Severity    model.Severity `json:"severity"`
	Description string         `json:"description"`
	Snapshot    string         `json:"frameSnapshot,omitempty"`
}

// ViolationService owns the append-only violation log and the
// escalation of session aggregates. The row insert and the counter
// update are applied back to back before any broadcast, so observers
// never see a count without its row.
type ViolationService struct {
	violationRepo repository.ViolationRepo
	sessionRepo   repository.SessionRepo
	sessionCache  cache.SessionCache
	feedCache     cache.FeedCache
	broadcaster   Broadcaster
}

func NewViolationService(
	violationRepo repository.ViolationRepo,
	sessionRepo repository.SessionRepo,
	sessionCache cache.SessionCache,
	feedCache cache.FeedCache,
) *ViolationService {
	return &ViolationService{
		violationRepo: violationRepo,
		sessionRepo:   sessionRepo,
		sessionCache:  sessionCache,
		feedCache:     feedCache,
	}
}

// SetBroadcaster sets the broadcaster for real-time events.
func (s *ViolationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// LogViolation appends the row, escalates the session aggregates, and
// fans out the violation plus the updated session to the supervisor
// sub-room. Returns the updated session.
func (s *ViolationService) LogViolation(ctx context.Context, examID, candidateID string, report ViolationReport) (*model.CandidateSession, error) {
	session, err := s.sessionRepo.Get(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("no session for exam %s candidate %s", examID, candidateID)
	}

	violation := &model.ViolationLog{
		ExamID:        examID,
		CandidateID:   candidateID,
		CandidateName: session.CandidateName,
		Type:          report.Type,
		Severity:      report.Severity,
		Description:   report.Description,
		Snapshot:      report.Snapshot,
		CreatedAt:     time.Now(),
	}
	if err := s.violationRepo.Insert(ctx, violation); err != nil {
		return nil, fmt.Errorf("failed to insert violation: %w", err)
	}
	if err := s.sessionRepo.ApplyViolationEffect(ctx, examID, candidateID, report.Severity); err != nil {
		return nil, fmt.Errorf("failed to apply violation effect: %w", err)
	}

	updated, err := s.sessionRepo.Get(ctx, examID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read updated session: %w", err)
	}

	if s.feedCache != nil {
		if err := s.feedCache.Push(ctx, examID, violation); err != nil {
			log.Printf("[violations] failed to push feed entry: %v", err)
		}
	}
	if s.sessionCache != nil {
		if err := s.sessionCache.Set(ctx, updated); err != nil {
			log.Printf("[violations] failed to mirror session: %v", err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToSupervisors(examID, MsgViolationLogged, violation)
		s.broadcaster.BroadcastToSupervisors(examID, MsgSessionUpdate, updated)
	}
	return updated, nil
}

// Warn records a supervisor-issued formal warning as a synthetic
// violation so it flows through the same counters, then notifies the
// candidate.
func (s *ViolationService) Warn(ctx context.Context, examID, candidateID, message string) (*model.CandidateSession, error) {
	session, err := s.LogViolation(ctx, examID, candidateID, ViolationReport{
		Type:        model.ViolationProctorWarning,
		Severity:    model.SeverityMedium,
		Description: message,
	})
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToCandidate(examID, candidateID, MsgProctorWarning, map[string]string{
			"message": message,
		})
	}
	return session, nil
}

// Feed returns the newest violations for an exam, serving from the
// Redis feed when it is warm and falling back to Mongo.
func (s *ViolationService) Feed(ctx context.Context, examID string, limit int) ([]*model.ViolationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.feedCache != nil {
		violations, err := s.feedCache.Recent(ctx, examID, limit)
		if err == nil && len(violations) > 0 {
			return violations, nil
		}
		if err != nil {
			log.Printf("[violations] feed cache read failed, falling back: %v", err)
		}
	}
	return s.violationRepo.ListByExam(ctx, examID, limit)
}

// History returns the full violation history for one candidate,
// most-recent-first.
func (s *ViolationService) History(ctx context.Context, examID, candidateID string) ([]*model.ViolationLog, error) {
	return s.violationRepo.ListByCandidate(ctx, examID, candidateID)
}
