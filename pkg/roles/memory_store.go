package roles

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	detection Detection
	expiresAt time.Time
}

// MemoryStore is an in-memory snapshot store suitable for single-process
// deployments and tests. Entries expire after the configured TTL and are
// swept by a background janitor.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a memory store with the given snapshot TTL.
// A non-positive TTL disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

// Get returns the cached snapshot for a subject.
func (s *MemoryStore) Get(ctx context.Context, subjectID string) (Detection, error) {
	s.mu.RLock()
	entry, ok := s.entries[subjectID]
	s.mu.RUnlock()

	if !ok {
		return Detection{}, ErrSnapshotNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, subjectID)
		s.mu.Unlock()
		return Detection{}, ErrSnapshotNotFound
	}
	return entry.detection, nil
}

// Put stores the snapshot unless a newer generation is already present.
func (s *MemoryStore) Put(ctx context.Context, detection Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[detection.SubjectID]; ok &&
		existing.detection.Generation > detection.Generation {
		return nil
	}

	entry := memoryEntry{detection: detection}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}
	s.entries[detection.SubjectID] = entry
	return nil
}

// Delete removes the snapshot for a subject.
func (s *MemoryStore) Delete(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	delete(s.entries, subjectID)
	s.mu.Unlock()
	return nil
}

// Close stops the background janitor.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for subject, entry := range s.entries {
				if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
					delete(s.entries, subject)
				}
			}
			s.mu.Unlock()
		}
	}
}
