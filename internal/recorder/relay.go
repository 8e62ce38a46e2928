package recorder

import (
	"errors"
	"sync"
)

// ErrNoResult is returned by Stop when the shell never reported a capture
// result. Like a rejected audio ref, this is a client-side capture problem.
var ErrNoResult = errors.New("no capture result reported")

// RelayCapture is the Capture implementation for deployments where the device
// shell performs the actual microphone work and reports the result: the shell
// uploads the audio, then posts the reference and duration here before the
// session flow calls Stop.
type RelayCapture struct {
	mu              sync.Mutex
	prepared        bool
	audioRef        string
	durationSeconds int
}

func NewRelayCapture() *RelayCapture {
	return &RelayCapture{}
}

func (c *RelayCapture) Prepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepared = true
	c.audioRef = ""
	c.durationSeconds = 0
	return nil
}

func (c *RelayCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.prepared {
		return errors.New("capture not prepared")
	}
	return nil
}

// SetResult records what the shell captured, to be handed out by Stop.
func (c *RelayCapture) SetResult(audioRef string, durationSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioRef = audioRef
	c.durationSeconds = durationSeconds
}

func (c *RelayCapture) Stop() (string, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audioRef == "" {
		return "", 0, ErrNoResult
	}
	return c.audioRef, c.durationSeconds, nil
}

func (c *RelayCapture) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepared = false
	c.audioRef = ""
	c.durationSeconds = 0
	return nil
}
