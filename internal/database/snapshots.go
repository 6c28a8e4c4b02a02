package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"virtual-tryon-backend/internal/orchestrator"
)

// SnapshotStore persists session snapshots in Postgres so a restart can
// rehydrate by session id. Only the minimum survives: session id, base
// resource ids and the active flag. Never the in-flight task.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(databaseURL string) (*SnapshotStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the snapshot table if missing.
func (s *SnapshotStore) EnsureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id        TEXT PRIMARY KEY,
			base_resource_ids JSONB NOT NULL DEFAULT '[]',
			is_active         BOOLEAN NOT NULL DEFAULT TRUE,
			saved_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create session_snapshots table: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Save(snap orchestrator.SessionSnapshot) error {
	ids, err := json.Marshal(snap.BaseResourceIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal resource ids: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO session_snapshots (session_id, base_resource_ids, is_active, saved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET base_resource_ids = EXCLUDED.base_resource_ids,
		    is_active = EXCLUDED.is_active,
		    saved_at = EXCLUDED.saved_at
	`, snap.SessionID, ids, snap.IsActive, snap.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Load(sessionID string) (*orchestrator.SessionSnapshot, error) {
	var snap orchestrator.SessionSnapshot
	var ids []byte

	err := s.db.QueryRow(`
		SELECT session_id, base_resource_ids, is_active, saved_at
		FROM session_snapshots
		WHERE session_id = $1
	`, sessionID).Scan(&snap.SessionID, &ids, &snap.IsActive, &snap.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal(ids, &snap.BaseResourceIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource ids: %w", err)
	}

	return &snap, nil
}

func (s *SnapshotStore) Delete(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
