// Package history provides persistent check result storage using SQLite.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/ppiankov/rangerwatch/internal/store"
)

// SnapshotSummary is a compact representation of one recorded check cycle.
type SnapshotSummary struct {
	At           time.Time `json:"at"`
	ID           int64     `json:"id"`
	ChecksCount  int       `json:"checksCount"`
	OKCount      int       `json:"okCount"`
	WarnCount    int       `json:"warnCount"`
	CritCount    int       `json:"critCount"`
	UnknownCount int       `json:"unknownCount"`
}

// Worst returns the most severe outcome recorded in the cycle.
func (s SnapshotSummary) Worst() store.Severity {
	switch {
	case s.UnknownCount > 0:
		return store.SeverityUnknown
	case s.CritCount > 0:
		return store.SeverityCritical
	case s.WarnCount > 0:
		return store.SeverityWarning
	default:
		return store.SeverityOK
	}
}

// TrendPoint is one recorded outcome of a single check.
type TrendPoint struct {
	At        time.Time `json:"at"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Enabled   bool      `json:"enabled"`
	Auditing  bool      `json:"auditing"`
	Recursive bool      `json:"recursive"`
	Resolved  bool      `json:"resolved"`
}

// Store persists check cycles and their results to SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each pooled connection to ":memory:" would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists a single check result as its own snapshot.
func (s *Store) Record(res store.CheckResult) error {
	at := res.At
	if at.IsZero() {
		at = time.Now()
	}
	return s.Save(store.Snapshot{At: at, Results: []store.CheckResult{res}})
}

// Save persists a snapshot and its results to the database.
func (s *Store) Save(snap store.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // commit below; rollback is no-op after commit

	counts := make(map[store.Severity]int, 4)
	for i := range snap.Results {
		counts[snap.Results[i].Severity]++
	}

	result, err := tx.Exec(
		"INSERT INTO snapshots (at, checks_count, ok_count, warn_count, crit_count, unknown_count) VALUES (?, ?, ?, ?, ?, ?)",
		snap.At, len(snap.Results),
		counts[store.SeverityOK], counts[store.SeverityWarning],
		counts[store.SeverityCritical], counts[store.SeverityUnknown],
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	snapID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO results
		(snapshot_id, check_name, severity, message, policy_id, policy_name, enabled, auditing, recursive, resolved, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing result insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement lifetime bounded by tx

	for i := range snap.Results {
		r := &snap.Results[i]
		_, err := stmt.Exec(snapID, r.Check, string(r.Severity), r.Message, r.PolicyID, r.PolicyName,
			r.Enabled, r.Auditing, r.Recursive, r.Resolved, r.Error, r.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("inserting result %q: %w", r.Check, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent snapshot summaries, ordered newest first.
func (s *Store) List(limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		"SELECT id, at, checks_count, ok_count, warn_count, crit_count, unknown_count FROM snapshots ORDER BY at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var summaries []SnapshotSummary
	for rows.Next() {
		var sm SnapshotSummary
		if err := rows.Scan(&sm.ID, &sm.At, &sm.ChecksCount, &sm.OKCount, &sm.WarnCount, &sm.CritCount, &sm.UnknownCount); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// Trend returns recorded outcomes of one check over time, newest first.
func (s *Store) Trend(check string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT s.at, r.severity, r.message, r.enabled, r.auditing, r.recursive, r.resolved
		FROM results r
		JOIN snapshots s ON s.id = r.snapshot_id
		WHERE r.check_name = ?
		ORDER BY s.at DESC, s.id DESC
		LIMIT ?`,
		check, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trend: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.At, &p.Severity, &p.Message, &p.Enabled, &p.Auditing, &p.Recursive, &p.Resolved); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Latest returns the most recent snapshot with its results, or nil if none exist.
func (s *Store) Latest() (*store.Snapshot, error) {
	var snapID int64
	var at time.Time
	err := s.db.QueryRow("SELECT id, at FROM snapshots ORDER BY at DESC, id DESC LIMIT 1").Scan(&snapID, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT check_name, severity, message, policy_id, policy_name, enabled, auditing, recursive, resolved, error, duration_ms
		FROM results WHERE snapshot_id = ? ORDER BY id`,
		snapID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	snap := &store.Snapshot{At: at}
	for rows.Next() {
		var (
			r          store.CheckResult
			sev        string
			durationMS int64
		)
		if err := rows.Scan(&r.Check, &sev, &r.Message, &r.PolicyID, &r.PolicyName,
			&r.Enabled, &r.Auditing, &r.Recursive, &r.Resolved, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.At = at
		r.Severity = store.Severity(sev)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		snap.Results = append(snap.Results, r)
	}
	return snap, rows.Err()
}
