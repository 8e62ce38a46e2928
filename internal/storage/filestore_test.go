package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"speaking-service/internal/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestSnapshotSaveLoadDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := &models.SessionSnapshot{
		SessionID:      "sess-1",
		StudentID:      "s42",
		TestID:         "t1",
		Question:       models.Question{ID: "q1", Prompt: "Talk about your family"},
		CurrentStep:    "feedback",
		CurrentAttempt: 2,
		Feedback:       &models.Feedback{Score: 71, Passed: true},
		SavedAt:        time.Now().UTC().Truncate(time.Second),
	}

	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx, "s42", "t1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if loaded.CurrentStep != "feedback" || loaded.CurrentAttempt != 2 {
		t.Errorf("loaded snapshot mismatch: step=%q attempt=%d", loaded.CurrentStep, loaded.CurrentAttempt)
	}
	if loaded.Feedback == nil || loaded.Feedback.Score != 71 {
		t.Error("feedback not round-tripped")
	}

	if err := store.DeleteSnapshot(ctx, "s42", "t1"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	loaded, err = store.LoadSnapshot(ctx, "s42", "t1")
	if err != nil {
		t.Fatalf("LoadSnapshot after delete: %v", err)
	}
	if loaded != nil {
		t.Error("expected nil after delete")
	}
}

func TestLoadMissingSnapshotReturnsNil(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.LoadSnapshot(context.Background(), "nobody", "t1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap != nil {
		t.Error("expected nil for missing snapshot")
	}
}

func TestAttemptHistoryOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		attempt := &models.Attempt{
			StudentID:     "s42",
			TestID:        "t1",
			QuestionID:    "q1",
			AttemptNumber: i,
			AudioRef:      "file://rec.m4a",
			CreatedAt:     time.Now(),
		}
		if err := store.SaveAttempt(ctx, attempt); err != nil {
			t.Fatalf("SaveAttempt %d: %v", i, err)
		}
	}

	history, err := store.AttemptHistory(ctx, "s42", "t1")
	if err != nil {
		t.Fatalf("AttemptHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(history))
	}
	for i, attempt := range history {
		if attempt.AttemptNumber != i+1 {
			t.Errorf("attempt %d out of order: number=%d", i, attempt.AttemptNumber)
		}
	}

	// other keys stay empty
	other, err := store.AttemptHistory(ctx, "s42", "t2")
	if err != nil {
		t.Fatalf("AttemptHistory other test: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected empty history for other test, got %d", len(other))
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "sessions.json")
	ctx := context.Background()

	store, err := NewFileStore(filename)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	snap := &models.SessionSnapshot{SessionID: "sess-1", StudentID: "s1", TestID: "t1", CurrentStep: "recording", SavedAt: time.Now()}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	reopened, err := NewFileStore(filename)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	loaded, err := reopened.LoadSnapshot(ctx, "s1", "t1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded == nil || loaded.SessionID != "sess-1" {
		t.Error("state did not survive reopen")
	}
}
