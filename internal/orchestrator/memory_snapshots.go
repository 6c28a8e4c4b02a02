package orchestrator

import "sync"

// MemorySnapshotStore keeps snapshots in process memory. Used in tests and in
// deployments without a database; snapshots then do not survive a restart.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]SessionSnapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]SessionSnapshot),
	}
}

func (s *MemorySnapshotStore) Save(snap SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.SessionID] = snap
	return nil
}

func (s *MemorySnapshotStore) Load(sessionID string) (*SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[sessionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *MemorySnapshotStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, sessionID)
	return nil
}
