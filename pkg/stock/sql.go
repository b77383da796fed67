package stock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkcloud/go-settings/internal/sqldb"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stock_entries (
		product_id TEXT NOT NULL,
		field_id TEXT NOT NULL,
		is_infinite INTEGER NOT NULL DEFAULT 0,
		infinite_value TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (product_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		field_id TEXT NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_items_key ON stock_items(product_id, field_id, id)`,
}

const upsertEntry = `INSERT INTO stock_entries (product_id, field_id, is_infinite, infinite_value)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(product_id, field_id) DO UPDATE SET
		is_infinite = excluded.is_infinite,
		infinite_value = excluded.infinite_value`

// SQLLedger stores entries in SQLite. Item order is the autoincrement id.
type SQLLedger struct {
	db *sql.DB
}

// NewSQLLedger creates the stock tables when missing.
func NewSQLLedger(ctx context.Context, db *sql.DB) (*SQLLedger, error) {
	if db == nil {
		return nil, errors.New("stock: nil database")
	}
	if err := sqldb.Migrate(ctx, db, schema...); err != nil {
		return nil, err
	}
	return &SQLLedger{db: db}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readFlag(ctx context.Context, q queryer, key Key) (bool, string, error) {
	var infinite bool
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT is_infinite, infinite_value FROM stock_entries WHERE product_id = ? AND field_id = ?`,
		key.Product, key.Field,
	).Scan(&infinite, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	return infinite, value, err
}

func (l *SQLLedger) Fetch(ctx context.Context, product, field string, limit, offset int) (Entry, error) {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return Entry{}, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1
	}
	entry := Entry{Items: []string{}}
	var err error
	entry.IsInfinite, entry.InfiniteValue, err = readFlag(ctx, l.db, key)
	if err != nil {
		return Entry{}, fmt.Errorf("stock: fetch %s: %w", key, err)
	}
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_items WHERE product_id = ? AND field_id = ?`,
		key.Product, key.Field,
	).Scan(&entry.Total); err != nil {
		return Entry{}, fmt.Errorf("stock: fetch %s: %w", key, err)
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT value FROM stock_items WHERE product_id = ? AND field_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		key.Product, key.Field, limit, offset,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("stock: fetch %s: %w", key, err)
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return Entry{}, fmt.Errorf("stock: fetch %s: %w", key, err)
		}
		entry.Items = append(entry.Items, value)
	}
	return entry, rows.Err()
}

func (l *SQLLedger) Add(ctx context.Context, product, field string, items []string) (int, error) {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return 0, err
	}
	cleaned := CleanItems(items)
	err := sqldb.InTx(ctx, l.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO stock_entries (product_id, field_id) VALUES (?, ?)`,
			key.Product, key.Field,
		); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_items (product_id, field_id, value) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, item := range cleaned {
			if _, err := stmt.ExecContext(ctx, key.Product, key.Field, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("stock: add %s: %w", key, err)
	}
	return len(cleaned), nil
}

func (l *SQLLedger) SetInfinite(ctx context.Context, product, field, value string) error {
	return l.reset(ctx, "infinite", Key{product, field}, true, value)
}

func (l *SQLLedger) Clear(ctx context.Context, product, field string) error {
	return l.reset(ctx, "clear", Key{product, field}, false, "")
}

func (l *SQLLedger) reset(ctx context.Context, op string, key Key, infinite bool, value string) error {
	if err := key.validate(); err != nil {
		return err
	}
	err := sqldb.InTx(ctx, l.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertEntry, key.Product, key.Field, infinite, value); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM stock_items WHERE product_id = ? AND field_id = ?`,
			key.Product, key.Field,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("stock: %s %s: %w", op, key, err)
	}
	return nil
}

func (l *SQLLedger) Pull(ctx context.Context, product, field string, quantity int) ([]string, error) {
	key := Key{product, field}
	if err := key.validate(); err != nil {
		return nil, err
	}
	if err := CheckQuantity(quantity); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return []string{}, nil
	}
	pulled := []string{}
	err := sqldb.InTx(ctx, l.db, func(tx *sql.Tx) error {
		infinite, value, err := readFlag(ctx, tx, key)
		if err != nil {
			return err
		}
		if infinite {
			pulled = repeat(value, quantity)
			return nil
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT id, value FROM stock_items WHERE product_id = ? AND field_id = ? ORDER BY id LIMIT ?`,
			key.Product, key.Field, quantity,
		)
		if err != nil {
			return err
		}
		var last int64
		for rows.Next() {
			var item string
			if err := rows.Scan(&last, &item); err != nil {
				rows.Close()
				return err
			}
			pulled = append(pulled, item)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(pulled) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM stock_items WHERE product_id = ? AND field_id = ? AND id <= ?`,
			key.Product, key.Field, last,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stock: pull %s: %w", key, err)
	}
	return pulled, nil
}
