package recorder

import (
	"errors"
	"fmt"
	"sync"
)

// Capture is the device-facing side of audio recording. Implementations talk
// to the actual microphone stack; tests substitute a fake.
type Capture interface {
	Prepare() error
	Start() error
	// Stop tears down the capture and reports where the audio landed and how
	// long it ran.
	Stop() (audioRef string, durationSeconds int, err error)
	Cleanup() error
}

// ErrBusy is returned when a session asks for the capture resource while
// another one holds it.
var ErrBusy = errors.New("audio capture already in use")

// Manager guards the single process-wide capture resource. At most one
// prepared or active instance exists at a time; any stale instance is cleaned
// up before a new one is prepared. Sessions acquire a handle on entering the
// recording step and release it on leaving.
type Manager struct {
	mu      sync.Mutex
	capture Capture
	holder  string
	active  bool
}

// NewManager wraps a capture device in the exclusive-handle guard.
func NewManager(capture Capture) *Manager {
	return &Manager{capture: capture}
}

// Acquire prepares the capture for the given session. A session re-acquiring
// its own handle first tears the previous instance down, so a crashed or
// abandoned recording cannot leave the device wedged.
func (m *Manager) Acquire(sessionID string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active && m.holder != sessionID {
		return nil, fmt.Errorf("%w (held by session %s)", ErrBusy, m.holder)
	}
	if m.active {
		// stale handle from the same session: tear down before re-preparing
		if err := m.capture.Cleanup(); err != nil {
			return nil, fmt.Errorf("cleanup stale capture: %w", err)
		}
		m.active = false
	}

	if err := m.capture.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare capture: %w", err)
	}
	m.active = true
	m.holder = sessionID
	return &Handle{manager: m, sessionID: sessionID}, nil
}

func (m *Manager) release(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || m.holder != sessionID {
		return nil
	}
	m.active = false
	m.holder = ""
	return m.capture.Cleanup()
}

// Handle is one session's scoped grant of the capture resource.
type Handle struct {
	manager   *Manager
	sessionID string
	released  bool
}

// Start begins capturing audio.
func (h *Handle) Start() error {
	return h.manager.capture.Start()
}

// Stop ends the capture and returns the recorded audio reference and
// duration.
func (h *Handle) Stop() (string, int, error) {
	return h.manager.capture.Stop()
}

// Release returns the capture resource. Safe to call more than once.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.manager.release(h.sessionID)
}
