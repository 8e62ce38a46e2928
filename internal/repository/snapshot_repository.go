package repository

import (
	"context"

	"speaking-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SnapshotRepository struct {
	Col *mongo.Collection
}

func NewSnapshotRepository(db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{Col: db.Collection("session_snapshots")}
}

// SaveSnapshot upserts the snapshot for its (student, test) key. A session
// has at most one snapshot; each save replaces the previous one.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap *models.SessionSnapshot) error {
	filter := bson.M{"student_id": snap.StudentID, "test_id": snap.TestID}
	_, err := r.Col.ReplaceOne(ctx, filter, snap, options.Replace().SetUpsert(true))
	return err
}

// LoadSnapshot returns the stored snapshot, or nil when none exists. Staleness
// is the caller's concern; the repository returns whatever is stored.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, studentID, testID string) (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	err := r.Col.FindOne(ctx, bson.M{"student_id": studentID, "test_id": testID}).Decode(&snap)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteSnapshot clears the snapshot after final submission or explicit reset.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, studentID, testID string) error {
	_, err := r.Col.DeleteOne(ctx, bson.M{"student_id": studentID, "test_id": testID})
	return err
}
