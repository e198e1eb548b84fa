package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// =============================================================================
// MEMORY STORAGE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps objects in a map. URLs use the memory:// scheme; they are
// opaque to the engine, so that is enough for tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailUploads makes every Upload fail. Tests use it to exercise the
	// upload-failure path in CreateEnrollment.
	FailUploads bool
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Upload(_ context.Context, key string, data io.Reader) (string, error) {
	if m.FailUploads {
		return "", io.ErrClosedPipe
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()

	return "memory://" + key, nil
}

func (m *Memory) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	b, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}
