package repository

import (
	"context"

	"speaking-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AttemptRepository struct {
	Col *mongo.Collection
}

func NewAttemptRepository(db *mongo.Database) *AttemptRepository {
	return &AttemptRepository{Col: db.Collection("attempts")}
}

// SaveAttempt appends one attempt. Attempts are insert-only; history is never
// rewritten.
func (r *AttemptRepository) SaveAttempt(ctx context.Context, attempt *models.Attempt) error {
	_, err := r.Col.InsertOne(ctx, attempt)
	return err
}

// AttemptHistory returns the attempts for a student and test ordered by
// attempt number.
func (r *AttemptRepository) AttemptHistory(ctx context.Context, studentID, testID string) ([]models.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "attempt_number", Value: 1}})
	cur, err := r.Col.Find(ctx, bson.M{"student_id": studentID, "test_id": testID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var attempts []models.Attempt
	for cur.Next(ctx) {
		var a models.Attempt
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
