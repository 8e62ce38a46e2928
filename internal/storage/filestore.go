package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"speaking-service/internal/models"
)

// FileStore keeps session snapshots and attempt history in a single JSON file
// on local disk. It backs single-device deployments where no Mongo instance
// is available; the Mongo repositories implement the same operations for the
// hosted setup.
type FileStore struct {
	filename string
	mu       sync.Mutex
}

type fileState struct {
	Snapshots map[string]models.SessionSnapshot `json:"snapshots"`
	Attempts  map[string][]models.Attempt       `json:"attempts"`
}

// NewFileStore opens (or creates) the store file.
func NewFileStore(filename string) (*FileStore, error) {
	s := &FileStore{filename: filename}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if err := s.write(&fileState{
			Snapshots: map[string]models.SessionSnapshot{},
			Attempts:  map[string][]models.Attempt{},
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) read() (*fileState, error) {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.filename, err)
	}
	state := &fileState{
		Snapshots: map[string]models.SessionSnapshot{},
		Attempts:  map[string][]models.Attempt{},
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", s.filename, err)
	}
	return state, nil
}

func (s *FileStore) write(state *fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store state: %w", err)
	}
	if err := os.WriteFile(s.filename, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", s.filename, err)
	}
	return nil
}

// SaveSnapshot upserts the snapshot under its (student, test) key.
func (s *FileStore) SaveSnapshot(_ context.Context, snap *models.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	state.Snapshots[models.SnapshotKey(snap.StudentID, snap.TestID)] = *snap
	return s.write(state)
}

// LoadSnapshot returns the stored snapshot, or nil when none exists.
func (s *FileStore) LoadSnapshot(_ context.Context, studentID, testID string) (*models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return nil, err
	}
	snap, ok := state.Snapshots[models.SnapshotKey(studentID, testID)]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// DeleteSnapshot removes the snapshot for a finished or reset session.
func (s *FileStore) DeleteSnapshot(_ context.Context, studentID, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	delete(state.Snapshots, models.SnapshotKey(studentID, testID))
	return s.write(state)
}

// SaveAttempt appends an attempt to the (student, test) history.
func (s *FileStore) SaveAttempt(_ context.Context, attempt *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	key := models.SnapshotKey(attempt.StudentID, attempt.TestID)
	state.Attempts[key] = append(state.Attempts[key], *attempt)
	return s.write(state)
}

// AttemptHistory returns the ordered attempt history for a student and test.
func (s *FileStore) AttemptHistory(_ context.Context, studentID, testID string) ([]models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return nil, err
	}
	return state.Attempts[models.SnapshotKey(studentID, testID)], nil
}
