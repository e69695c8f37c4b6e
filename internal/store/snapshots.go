package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"henkan/internal/config"
)

// SaveConfigSnapshot records cfg unless it equals the latest snapshot. It
// reports whether a row was written.
func (s *Store) SaveConfigSnapshot(ctx context.Context, cfg *config.Config, reason string) (bool, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	hash := sha256.Sum256(data)

	latest, err := s.LatestConfigSnapshot(ctx)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.Hash == hash {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_snapshots (version, created_at, config_hash, config_data, reason)
		VALUES (?, ?, ?, ?, ?)`,
		cfg.Version, s.now().UnixNano(), hash[:], string(data), reason,
	)
	if err != nil {
		return false, fmt.Errorf("insert config snapshot: %w", err)
	}
	s.log.Debug("config snapshot saved", "reason", reason)
	return true, nil
}

// LatestConfigSnapshot returns the newest snapshot, or nil when none exists.
func (s *Store) LatestConfigSnapshot(ctx context.Context) (*ConfigSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, created_at, config_hash, config_data, reason
		FROM config_snapshots
		ORDER BY id DESC
		LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest config snapshot: %w", err)
	}
	return snap, nil
}

// ConfigSnapshots returns up to limit snapshots, newest first.
func (s *Store) ConfigSnapshots(ctx context.Context, limit int) ([]ConfigSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, created_at, config_hash, config_data, reason
		FROM config_snapshots
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query config snapshots: %w", err)
	}
	defer rows.Close()

	var out []ConfigSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config snapshot: %w", err)
		}
		out = append(out, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config snapshots: %w", err)
	}
	return out, nil
}

// Config decodes the snapshot, checking it against its hash first.
func (c *ConfigSnapshot) Config() (*config.Config, error) {
	if err := VerifySnapshot(c); err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	if err := json.Unmarshal([]byte(c.Data), cfg); err != nil {
		return nil, fmt.Errorf("decode config snapshot %d: %w", c.ID, err)
	}
	return cfg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r scanner) (*ConfigSnapshot, error) {
	var c ConfigSnapshot
	var created int64
	var hash []byte
	var reason sql.NullString
	if err := r.Scan(&c.ID, &c.Version, &created, &hash, &c.Data, &reason); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, created)
	copy(c.Hash[:], hash)
	c.Reason = reason.String
	return &c, nil
}
