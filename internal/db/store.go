package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tadasupo/backend/internal/rowstore"
)

// Store keeps sheet tables in Postgres. Each data row is a JSON array of
// cells in sheet_rows, ordered by row_no; headers live in sheet_tables.
type Store struct {
	Pool *pgxpool.Pool
}

var _ rowstore.Store = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{Pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure sheet schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sheet_tables (
			name   TEXT PRIMARY KEY,
			header JSONB NOT NULL DEFAULT '[]'
		);
		CREATE TABLE IF NOT EXISTS sheet_rows (
			table_name TEXT NOT NULL REFERENCES sheet_tables(name),
			row_no     INTEGER NOT NULL,
			cells      JSONB NOT NULL DEFAULT '[]',
			PRIMARY KEY (table_name, row_no)
		);
	`)
	return err
}

func (s *Store) EnsureTable(ctx context.Context, table string, header []string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT header FROM sheet_tables WHERE name = $1 FOR UPDATE`, table).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			b, _ := json.Marshal(header)
			_, err = tx.Exec(ctx, `INSERT INTO sheet_tables (name, header) VALUES ($1, $2)`, table, b)
			return err
		}
		if err != nil {
			return err
		}
		current := decodeCells(raw)
		if len(current) >= len(header) {
			return nil
		}
		current = append(current, header[len(current):]...)
		b, _ := json.Marshal(current)
		_, err = tx.Exec(ctx, `UPDATE sheet_tables SET header = $1 WHERE name = $2`, b, table)
		return err
	})
}

func (s *Store) Header(ctx context.Context, table string) (rowstore.Row, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT header FROM sheet_tables WHERE name = $1`, table).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", rowstore.ErrNoTable, table)
	}
	if err != nil {
		return nil, err
	}
	return decodeCells(raw), nil
}

func (s *Store) Rows(ctx context.Context, table string) ([]rowstore.Row, error) {
	if _, err := s.Header(ctx, table); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT cells FROM sheet_rows WHERE table_name = $1 ORDER BY row_no ASC`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rowstore.Row{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, decodeCells(raw))
	}
	return out, rows.Err()
}

func (s *Store) ReadRow(ctx context.Context, table string, idx int) (rowstore.Row, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT cells FROM sheet_rows WHERE table_name = $1 AND row_no = $2`, table, idx).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s[%d]", rowstore.ErrRowMissing, table, idx)
	}
	if err != nil {
		return nil, err
	}
	return decodeCells(raw), nil
}

func (s *Store) WriteCells(ctx context.Context, table string, idx int, cells map[int]string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT cells FROM sheet_rows WHERE table_name = $1 AND row_no = $2 FOR UPDATE`, table, idx).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s[%d]", rowstore.ErrRowMissing, table, idx)
		}
		if err != nil {
			return err
		}
		row := decodeCells(raw)
		for col, v := range cells {
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = v
		}
		b, _ := json.Marshal(row)
		_, err = tx.Exec(ctx, `UPDATE sheet_rows SET cells = $1 WHERE table_name = $2 AND row_no = $3`, b, table, idx)
		return err
	})
}

func (s *Store) AppendRow(ctx context.Context, table string, row rowstore.Row) error {
	b, _ := json.Marshal([]string(row))
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		// Serializes appends per table so row numbers stay dense.
		if _, err := tx.Exec(ctx, `SELECT 1 FROM sheet_tables WHERE name = $1 FOR UPDATE`, table); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO sheet_rows (table_name, row_no, cells)
			SELECT $1, COALESCE(MAX(row_no) + 1, 0), $2 FROM sheet_rows WHERE table_name = $1
		`, table, b)
		return err
	})
}

func decodeCells(raw []byte) rowstore.Row {
	var cells []string
	if len(raw) == 0 {
		return rowstore.Row{}
	}
	if err := json.Unmarshal(raw, &cells); err != nil {
		return rowstore.Row{}
	}
	return rowstore.Row(cells)
}
