package history

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    at            DATETIME NOT NULL,
    checks_count  INTEGER NOT NULL DEFAULT 0,
    ok_count      INTEGER NOT NULL DEFAULT 0,
    warn_count    INTEGER NOT NULL DEFAULT 0,
    crit_count    INTEGER NOT NULL DEFAULT 0,
    unknown_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
    check_name  TEXT NOT NULL DEFAULT '',
    severity    TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    policy_id   TEXT NOT NULL DEFAULT '',
    policy_name TEXT NOT NULL DEFAULT '',
    enabled     BOOLEAN NOT NULL DEFAULT 0,
    auditing    BOOLEAN NOT NULL DEFAULT 0,
    recursive   BOOLEAN NOT NULL DEFAULT 0,
    resolved    BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_results_snapshot ON results(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_results_check ON results(check_name);`,

	`ALTER TABLE results ADD COLUMN error TEXT NOT NULL DEFAULT '';
ALTER TABLE results ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0;`,
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("recording schema version %d: %w", i+1, err)
		}
	}
	return nil
}
