package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorhub/internal/model"
)

type ViolationRepo interface {
	Insert(ctx context.Context, violation *model.ViolationLog) error
	// ListByExam returns the newest violations for an exam, bounded, for
	// the live feed.
	ListByExam(ctx context.Context, examID string, limit int) ([]*model.ViolationLog, error)
	// ListByCandidate returns the full history for one candidate,
	// most-recent-first, for audit and review.
	ListByCandidate(ctx context.Context, examID, candidateID string) ([]*model.ViolationLog, error)
	CountByCandidate(ctx context.Context, examID, candidateID string) (int64, error)
}

type violationRepo struct {
	collection *mongo.Collection
}

func NewViolationRepo(db *mongo.Database) ViolationRepo {
	return &violationRepo{
		collection: db.Collection("violations"),
	}
}

func (r *violationRepo) Insert(ctx context.Context, violation *model.ViolationLog) error {
	if violation.ID == "" {
		violation.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.collection.InsertOne(ctx, violation)
	return err
}

func (r *violationRepo) ListByExam(ctx context.Context, examID string, limit int) ([]*model.ViolationLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{"examId": examID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var violations []*model.ViolationLog
	if err := cursor.All(ctx, &violations); err != nil {
		return nil, err
	}
	return violations, nil
}

func (r *violationRepo) ListByCandidate(ctx context.Context, examID, candidateID string) ([]*model.ViolationLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"examId": examID, "candidateId": candidateID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var violations []*model.ViolationLog
	if err := cursor.All(ctx, &violations); err != nil {
		return nil, err
	}
	return violations, nil
}

func (r *violationRepo) CountByCandidate(ctx context.Context, examID, candidateID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"examId": examID, "candidateId": candidateID})
}
