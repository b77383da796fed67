package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inkcloud/go-settings/internal/sqldb"
)

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS settings_documents (
		tenant_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		etag TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		extra TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (tenant_id, domain)
	)`,
}

// SQLStore keeps snapshots as JSON in SQLite.
type SQLStore[T any] struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates the documents table when missing.
func NewSQLStore[T any](ctx context.Context, db *sql.DB) (*SQLStore[T], error) {
	if db == nil {
		return nil, errors.New("state: nil database")
	}
	if err := sqldb.Migrate(ctx, db, sqlSchema...); err != nil {
		return nil, err
	}
	return &SQLStore[T]{db: db, now: time.Now}, nil
}

func (s *SQLStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ref.validate(); err != nil {
		return zero, Meta{}, false, err
	}

	var raw, extra, updated string
	var meta Meta
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot, snapshot_id, etag, updated_at, extra FROM settings_documents WHERE tenant_id = ? AND domain = ?`,
		ref.Tenant, ref.Domain,
	).Scan(&raw, &meta.SnapshotID, &meta.ETag, &updated, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: query %s/%s: %w", ref.Tenant, ref.Domain, err)
	}

	var snapshot T
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode %s/%s: %w", ref.Tenant, ref.Domain, err)
	}
	if meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode updated_at: %w", err)
	}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &meta.Extra); err != nil {
			return zero, Meta{}, false, fmt.Errorf("state: decode extra: %w", err)
		}
	}
	return snapshot, meta, true, nil
}

func (s *SQLStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ref.validate(); err != nil {
		return Meta{}, err
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s/%s: %w", ref.Tenant, ref.Domain, err)
	}
	saved := stamp(meta, s.now())
	extra := []byte("{}")
	if len(saved.Extra) > 0 {
		if extra, err = json.Marshal(saved.Extra); err != nil {
			return Meta{}, fmt.Errorf("state: encode extra: %w", err)
		}
	}

	err = sqldb.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT etag FROM settings_documents WHERE tenant_id = ? AND domain = ?`,
			ref.Tenant, ref.Domain,
		).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		case conflicts(meta.ETag, current):
			return ErrETagMismatch
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO settings_documents (tenant_id, domain, snapshot, snapshot_id, etag, updated_at, extra)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, domain) DO UPDATE SET
				snapshot = excluded.snapshot,
				snapshot_id = excluded.snapshot_id,
				etag = excluded.etag,
				updated_at = excluded.updated_at,
				extra = excluded.extra`,
			ref.Tenant, ref.Domain, string(raw), saved.SnapshotID, saved.ETag,
			saved.UpdatedAt.Format(time.RFC3339Nano), string(extra),
		)
		return err
	})
	if errors.Is(err, ErrETagMismatch) {
		return Meta{}, err
	}
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s/%s: %w", ref.Tenant, ref.Domain, err)
	}
	return saved, nil
}

// List returns the sorted domains stored for tenant.
func (s *SQLStore[T]) List(ctx context.Context, tenant string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain FROM settings_documents WHERE tenant_id = ? ORDER BY domain`,
		strings.TrimSpace(tenant),
	)
	if err != nil {
		return nil, fmt.Errorf("state: list %s: %w", tenant, err)
	}
	defer rows.Close()
	domains := []string{}
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}
