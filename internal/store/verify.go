package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrSnapshotCorrupt is returned when a snapshot no longer matches its hash.
var ErrSnapshotCorrupt = errors.New("config snapshot corrupt")

// VerifySnapshot checks that the stored data matches the stored hash.
func VerifySnapshot(c *ConfigSnapshot) error {
	computed := sha256.Sum256([]byte(c.Data))
	if computed != c.Hash {
		return fmt.Errorf("%w: snapshot %d: computed %x, stored %x", ErrSnapshotCorrupt, c.ID, computed[:8], c.Hash[:8])
	}
	return nil
}

// VerifyAllSnapshots checks every snapshot and returns the ids of the
// corrupt ones.
func (s *Store) VerifyAllSnapshots(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, created_at, config_hash, config_data, reason
		FROM config_snapshots
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all snapshots: %w", err)
	}
	defer rows.Close()

	var corrupted []int64
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := VerifySnapshot(snap); err != nil {
			s.log.Warn("corrupt config snapshot", "id", snap.ID)
			corrupted = append(corrupted, snap.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return corrupted, nil
}
