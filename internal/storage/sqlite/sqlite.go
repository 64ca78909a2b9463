package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"codebot/internal/storage"
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open инициализирует соединение и выполняет миграции.
// Путь ":memory:" открывает общую in-memory базу (для тестов и CLI run).
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			module TEXT NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_ts ON metrics(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_module_ts ON metrics(module, ts);`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			subject TEXT,
			action TEXT,
			source TEXT,
			status TEXT,
			request_id TEXT,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_subject_ts ON audit_events(subject, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_request_id ON audit_events(request_id);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveMetric сохраняет метрику.
func (s *Store) SaveMetric(ctx context.Context, rec storage.MetricRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO metrics(module, payload, ts) VALUES(?,?,?)`, rec.Module, rec.Payload, ts)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// SaveAudit сохраняет аудиторное событие.
func (s *Store) SaveAudit(ctx context.Context, ev storage.AuditEvent) error {
	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events(subject, action, source, status, request_id, payload, ts) VALUES(?,?,?,?,?,?,?)`,
		ev.Subject, ev.Action, ev.Source, ev.Status, ev.RequestID, ev.Payload, ts)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ErrNotFound возвращается, когда записей нет.
var ErrNotFound = errors.New("not found")

// LatestMetric возвращает последнюю метрику по модулю.
func (s *Store) LatestMetric(ctx context.Context, module string) (storage.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT module, payload, ts FROM metrics WHERE module = ? ORDER BY ts DESC, id DESC LIMIT 1`, module)
	var rec storage.MetricRecord
	var ts string
	if err := row.Scan(&rec.Module, &rec.Payload, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MetricRecord{}, fmt.Errorf("latest metric %s: %w", module, ErrNotFound)
		}
		return storage.MetricRecord{}, fmt.Errorf("query latest metric: %w", err)
	}
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.MetricRecord{}, fmt.Errorf("parse metric timestamp: %w", err)
	}
	rec.TS = parsedTS
	return rec, nil
}

// QueryAudit возвращает аудит по фильтрам.
func (s *Store) QueryAudit(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To
	if to.IsZero() {
		to = time.Now().UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT subject, action, source, status, request_id, payload, ts
FROM audit_events
WHERE ts >= ? AND ts <= ? AND (? = '' OR subject = ?) AND (? = '' OR action = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from, to, q.Subject, q.Subject, q.Action, q.Action, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEvent, 0, limit)
	for rows.Next() {
		var ev storage.AuditEvent
		var ts string
		if err := rows.Scan(&ev.Subject, &ev.Action, &ev.Source, &ev.Status, &ev.RequestID, &ev.Payload, &ts); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		ev.TS = parsedTS
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return events, nil
}

// PurgeAudit удаляет события старше before и возвращает их число.
func (s *Store) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE ts < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit rows: %w", err)
	}
	return n, nil
}

// AuditStats считает события по action и status начиная с since.
func (s *Store) AuditStats(ctx context.Context, since time.Time) ([]storage.ActionStat, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT action, status, COUNT(*)
FROM audit_events
WHERE ts >= ?
GROUP BY action, status
ORDER BY COUNT(*) DESC, action, status`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query audit stats: %w", err)
	}
	defer rows.Close()

	var stats []storage.ActionStat
	for rows.Next() {
		var st storage.ActionStat
		if err := rows.Scan(&st.Action, &st.Status, &st.Count); err != nil {
			return nil, fmt.Errorf("scan audit stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit stats: %w", err)
	}
	return stats, nil
}

// PurgeMetrics удаляет снимки метрик старше before.
func (s *Store) PurgeMetrics(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metrics WHERE ts < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge metrics: %w", err)
	}
	return res.RowsAffected()
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Write реализует общий AuditSink интерфейс.
func (s *Store) Write(ctx context.Context, ev storage.AuditEvent) error {
	return s.SaveAudit(ctx, ev)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarshalPayload сериализует снимок метрик в JSON.
func MarshalPayload(data interface{}) ([]byte, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return buf, nil
}
