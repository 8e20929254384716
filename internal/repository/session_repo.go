package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorhub/internal/model"
)

type SessionRepo interface {
	// Upsert creates the session on first join (count 0, severity none,
	// status active) or refreshes profile fields and reactivates it on a
	// re-join, leaving the aggregates untouched.
	Upsert(ctx context.Context, examID, candidateID string, profile model.CandidateProfile) (*model.CandidateSession, error)
	Get(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error)
	ListByExam(ctx context.Context, examID string) ([]*model.CandidateSession, error)
	UpdateStatus(ctx context.Context, examID, candidateID string, status model.SessionStatus) error
	UpdateProgress(ctx context.Context, examID, candidateID string, questionsAnswered int) error
	// ApplyViolationEffect increments the violation count and raises the
	// highest severity in a single document update, so two racing
	// violations cannot lose an increment or downgrade the max.
	ApplyViolationEffect(ctx context.Context, examID, candidateID string, severity model.Severity) error
	AddExtraTime(ctx context.Context, examID, candidateID string, minutes int) error
	SetConnection(ctx context.Context, examID, candidateID, connectionID string) error
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) filter(examID, candidateID string) bson.M {
	return bson.M{"examId": examID, "candidateId": candidateID}
}

func (r *sessionRepo) Upsert(ctx context.Context, examID, candidateID string, profile model.CandidateProfile) (*model.CandidateSession, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"organizationId":   profile.OrganizationID,
			"candidateName":    profile.Name,
			"candidateEmail":   profile.Email,
			"hasAccommodation": profile.Accommodation,
			"totalQuestions":   profile.TotalQuestions,
			"status":           model.SessionActive,
			"updatedAt":        now,
		},
		"$setOnInsert": bson.M{
			"examId":            examID,
			"candidateId":       candidateID,
			"questionsAnswered": 0,
			"violationCount":    0,
			"highestSeverity":   model.SeverityNone,
			"extraTimeMinutes":  0,
			"joinedAt":          now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var session model.CandidateSession
	err := r.collection.FindOneAndUpdate(ctx, r.filter(examID, candidateID), update, opts).Decode(&session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Get(ctx context.Context, examID, candidateID string) (*model.CandidateSession, error) {
	var session model.CandidateSession
	err := r.collection.FindOne(ctx, r.filter(examID, candidateID)).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) ListByExam(ctx context.Context, examID string) ([]*model.CandidateSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "candidateName", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"examId": examID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.CandidateSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, examID, candidateID string, status model.SessionStatus) error {
	_, err := r.collection.UpdateOne(ctx, r.filter(examID, candidateID), bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now()},
	})
	return err
}

func (r *sessionRepo) UpdateProgress(ctx context.Context, examID, candidateID string, questionsAnswered int) error {
	_, err := r.collection.UpdateOne(ctx, r.filter(examID, candidateID), bson.M{
		"$set": bson.M{"questionsAnswered": questionsAnswered, "updatedAt": time.Now()},
	})
	return err
}

func (r *sessionRepo) ApplyViolationEffect(ctx context.Context, examID, candidateID string, severity model.Severity) error {
	_, err := r.collection.UpdateOne(ctx, r.filter(examID, candidateID), bson.M{
		"$inc": bson.M{"violationCount": 1},
		"$max": bson.M{"highestSeverity": severity},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (r *sessionRepo) AddExtraTime(ctx context.Context, examID, candidateID string, minutes int) error {
	_, err := r.collection.UpdateOne(ctx, r.filter(examID, candidateID), bson.M{
		"$inc": bson.M{"extraTimeMinutes": minutes},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (r *sessionRepo) SetConnection(ctx context.Context, examID, candidateID, connectionID string) error {
	_, err := r.collection.UpdateOne(ctx, r.filter(examID, candidateID), bson.M{
		"$set": bson.M{"connectionId": connectionID, "updatedAt": time.Now()},
	})
	return err
}
