package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default file-backed store.
//
// The database is opened with WAL mode for better concurrency, and the schema
// is created on open, so pointing the process at a previously-unknown file
// just works.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS calls (
	call_control_id TEXT PRIMARY KEY,
	from_number     TEXT NOT NULL,
	to_number       TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS call_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	call_control_id TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	ts              TEXT NOT NULL,
	payload_json    TEXT
);
CREATE TABLE IF NOT EXISTS ivr_selections (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	call_control_id TEXT NOT NULL,
	digit           TEXT NOT NULL,
	department      TEXT NOT NULL,
	ts              TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transfers (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	call_control_id TEXT NOT NULL,
	to_sip_uri      TEXT NOT NULL,
	status          TEXT NOT NULL,
	ts              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_created_at      ON calls(created_at);
CREATE INDEX IF NOT EXISTS idx_call_events_call      ON call_events(call_control_id);
CREATE INDEX IF NOT EXISTS idx_ivr_selections_call   ON ivr_selections(call_control_id);
CREATE INDEX IF NOT EXISTS idx_ivr_selections_dept   ON ivr_selections(department);
CREATE INDEX IF NOT EXISTS idx_transfers_call        ON transfers(call_control_id);
`

// NewSQLiteStore opens (and if necessary creates) the database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles concurrency better with a single writer; concurrent
	// webhook deliveries block briefly instead of failing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	// Merge WAL into the main db file before closing.
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *SQLiteStore) SaveCallIfNew(ctx context.Context, callControlID, fromNumber, toNumber string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO calls (call_control_id, from_number, to_number, created_at) VALUES (?, ?, ?, ?)`,
		callControlID, fromNumber, toNumber, Timestamp(s.now()),
	)
	return err
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, callControlID, eventType string, payload []byte) error {
	var payloadJSON any
	if len(payload) > 0 {
		payloadJSON = string(payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_events (call_control_id, event_type, ts, payload_json) VALUES (?, ?, ?, ?)`,
		callControlID, eventType, Timestamp(s.now()), payloadJSON,
	)
	return err
}

func (s *SQLiteStore) AppendIVRSelection(ctx context.Context, callControlID, digit, department string) error {
	if !ValidDepartment(department) {
		return fmt.Errorf("%w: %q", ErrInvalidDepartment, department)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ivr_selections (call_control_id, digit, department, ts) VALUES (?, ?, ?, ?)`,
		callControlID, digit, department, Timestamp(s.now()),
	)
	return err
}

func (s *SQLiteStore) AppendTransfer(ctx context.Context, callControlID, destinationURI, status string) error {
	if !ValidTransferStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers (call_control_id, to_sip_uri, status, ts) VALUES (?, ?, ?, ?)`,
		callControlID, destinationURI, status, Timestamp(s.now()),
	)
	return err
}

func (s *SQLiteStore) CallStats(ctx context.Context, since time.Time, department string) (CallStats, error) {
	cutoff := Timestamp(since)
	var out CallStats

	if department == "" {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM calls WHERE created_at >= ?`, cutoff,
		).Scan(&out.Volume); err != nil {
			return CallStats{}, err
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(DISTINCT s.call_control_id)
			 FROM ivr_selections s JOIN calls c ON s.call_control_id = c.call_control_id
			 WHERE c.created_at >= ?`, cutoff,
		).Scan(&out.WithSelection); err != nil {
			return CallStats{}, err
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(CASE WHEN t.status = 'success' THEN 1 END), COUNT(*)
			 FROM transfers t JOIN calls c ON t.call_control_id = c.call_control_id
			 WHERE c.created_at >= ?`, cutoff,
		).Scan(&out.TransferSuccess, &out.TransferTotal); err != nil {
			return CallStats{}, err
		}
		return out, nil
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT c.call_control_id)
		 FROM calls c JOIN ivr_selections s ON c.call_control_id = s.call_control_id
		 WHERE c.created_at >= ? AND s.department = ?`, cutoff, department,
	).Scan(&out.Volume); err != nil {
		return CallStats{}, err
	}
	out.WithSelection = out.Volume
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(CASE WHEN t.status = 'success' THEN 1 END), COUNT(*)
		 FROM transfers t
		 JOIN calls c ON t.call_control_id = c.call_control_id
		 JOIN ivr_selections s ON c.call_control_id = s.call_control_id
		 WHERE c.created_at >= ? AND s.department = ?`, cutoff, department,
	).Scan(&out.TransferSuccess, &out.TransferTotal); err != nil {
		return CallStats{}, err
	}
	return out, nil
}

func (s *SQLiteStore) VolumeTrend(ctx context.Context, since time.Time, department string) ([]TrendPoint, error) {
	cutoff := Timestamp(since)

	var rows *sql.Rows
	var err error
	if department == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT substr(created_at, 1, 10) AS day, COUNT(*)
			 FROM calls WHERE created_at >= ?
			 GROUP BY day ORDER BY day DESC`, cutoff)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT substr(c.created_at, 1, 10) AS day, COUNT(DISTINCT c.call_control_id)
			 FROM calls c
			 LEFT JOIN ivr_selections s ON c.call_control_id = s.call_control_id
			 WHERE c.created_at >= ? AND (s.department = ? OR s.department IS NULL)
			 GROUP BY day ORDER BY day DESC`, cutoff, department)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TrendPoint, 0)
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Day, &p.Calls); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecentCalls(ctx context.Context, limit int, department string) ([]RecentCall, error) {
	var rows *sql.Rows
	var err error
	if department == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT c.call_control_id, s.department, s.digit, c.created_at
			 FROM calls c
			 LEFT JOIN ivr_selections s ON c.call_control_id = s.call_control_id
			 ORDER BY c.created_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT c.call_control_id, s.department, s.digit, c.created_at
			 FROM calls c
			 JOIN ivr_selections s ON c.call_control_id = s.call_control_id
			 WHERE s.department = ?
			 ORDER BY c.created_at DESC LIMIT ?`, department, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RecentCall, 0)
	for rows.Next() {
		var rc RecentCall
		var dept, digit sql.NullString
		if err := rows.Scan(&rc.CallControlID, &dept, &digit, &rc.CreatedAt); err != nil {
			return nil, err
		}
		rc.Department = dept.String
		rc.Digit = digit.String
		out = append(out, rc)
	}
	return out, rows.Err()
}
