package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"call-router/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the server-backed alternative to SQLite, selected with
// DB_DRIVER=postgres. Timestamps are stored in the same lexicographically
// comparable text representation so both backends share query semantics.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS calls (
	call_control_id TEXT PRIMARY KEY,
	from_number     TEXT NOT NULL,
	to_number       TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS call_events (
	id              BIGSERIAL PRIMARY KEY,
	call_control_id TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	ts              TEXT NOT NULL,
	payload_json    TEXT
);
CREATE TABLE IF NOT EXISTS ivr_selections (
	id              BIGSERIAL PRIMARY KEY,
	call_control_id TEXT NOT NULL,
	digit           TEXT NOT NULL,
	department      TEXT NOT NULL,
	ts              TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transfers (
	id              BIGSERIAL PRIMARY KEY,
	call_control_id TEXT NOT NULL,
	to_sip_uri      TEXT NOT NULL,
	status          TEXT NOT NULL,
	ts              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_created_at    ON calls(created_at);
CREATE INDEX IF NOT EXISTS idx_call_events_call    ON call_events(call_control_id);
CREATE INDEX IF NOT EXISTS idx_ivr_selections_call ON ivr_selections(call_control_id);
CREATE INDEX IF NOT EXISTS idx_ivr_selections_dept ON ivr_selections(department);
CREATE INDEX IF NOT EXISTS idx_transfers_call      ON transfers(call_control_id);
`

// NewPostgresStore opens a pooled connection and applies the schema.
// dsn must not be logged; it contains secrets.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) SaveCallIfNew(ctx context.Context, callControlID, fromNumber, toNumber string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (call_control_id, from_number, to_number, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (call_control_id) DO NOTHING`,
		callControlID, fromNumber, toNumber, Timestamp(s.now()),
	)
	return err
}

func (s *PostgresStore) AppendEvent(ctx context.Context, callControlID, eventType string, payload []byte) error {
	var payloadJSON any
	if len(payload) > 0 {
		payloadJSON = string(payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_events (call_control_id, event_type, ts, payload_json) VALUES ($1, $2, $3, $4)`,
		callControlID, eventType, Timestamp(s.now()), payloadJSON,
	)
	return err
}

func (s *PostgresStore) AppendIVRSelection(ctx context.Context, callControlID, digit, department string) error {
	if !ValidDepartment(department) {
		return fmt.Errorf("%w: %q", ErrInvalidDepartment, department)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ivr_selections (call_control_id, digit, department, ts) VALUES ($1, $2, $3, $4)`,
		callControlID, digit, department, Timestamp(s.now()),
	)
	return err
}

func (s *PostgresStore) AppendTransfer(ctx context.Context, callControlID, destinationURI, status string) error {
	if !ValidTransferStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers (call_control_id, to_sip_uri, status, ts) VALUES ($1, $2, $3, $4)`,
		callControlID, destinationURI, status, Timestamp(s.now()),
	)
	return err
}

func (s *PostgresStore) CallStats(ctx context.Context, since time.Time, department string) (CallStats, error) {
	cutoff := Timestamp(since)
	var out CallStats

	if department == "" {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM calls WHERE created_at >= $1`, cutoff,
		).Scan(&out.Volume); err != nil {
			return CallStats{}, err
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(DISTINCT s.call_control_id)
			 FROM ivr_selections s JOIN calls c ON s.call_control_id = c.call_control_id
			 WHERE c.created_at >= $1`, cutoff,
		).Scan(&out.WithSelection); err != nil {
			return CallStats{}, err
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(CASE WHEN t.status = 'success' THEN 1 END), COUNT(*)
			 FROM transfers t JOIN calls c ON t.call_control_id = c.call_control_id
			 WHERE c.created_at >= $1`, cutoff,
		).Scan(&out.TransferSuccess, &out.TransferTotal); err != nil {
			return CallStats{}, err
		}
		return out, nil
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT c.call_control_id)
		 FROM calls c JOIN ivr_selections s ON c.call_control_id = s.call_control_id
		 WHERE c.created_at >= $1 AND s.department = $2`, cutoff, department,
	).Scan(&out.Volume); err != nil {
		return CallStats{}, err
	}
	out.WithSelection = out.Volume
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(CASE WHEN t.status = 'success' THEN 1 END), COUNT(*)
		 FROM transfers t
		 JOIN calls c ON t.call_control_id = c.call_control_id
		 JOIN ivr_selections s ON c.call_control_id = s.call_control_id
		 WHERE c.created_at >= $1 AND s.department = $2`, cutoff, department,
	).Scan(&out.TransferSuccess, &out.TransferTotal); err != nil {
		return CallStats{}, err
	}
	return out, nil
}

func (s *PostgresStore) VolumeTrend(ctx context.Context, since time.Time, department string) ([]TrendPoint, error) {
	cutoff := Timestamp(since)

	var rows *sql.Rows
	var err error
	if department == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT substr(created_at, 1, 10) AS day, COUNT(*)
			 FROM calls WHERE created_at >= $1
			 GROUP BY day ORDER BY day DESC`, cutoff)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT substr(c.created_at, 1, 10) AS day, COUNT(DISTINCT c.call_control_id)
			 FROM calls c
			 LEFT JOIN ivr_selections s ON c.call_control_id = s.call_control_id
			 WHERE c.created_at >= $1 AND (s.department = $2 OR s.department IS NULL)
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

func (s *PostgresStore) RecentCalls(ctx context.Context, limit int, department string) ([]RecentCall, error) {
	var rows *sql.Rows
	var err error
	if department == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT c.call_control_id, s.department, s.digit, c.created_at
			 FROM calls c
			 LEFT JOIN ivr_selections s ON c.call_control_id = s.call_control_id
			 ORDER BY c.created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT c.call_control_id, s.department, s.digit, c.created_at
			 FROM calls c
			 JOIN ivr_selections s ON c.call_control_id = s.call_control_id
			 WHERE s.department = $1
			 ORDER BY c.created_at DESC LIMIT $2`, department, limit)
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
