// Package logging persists a provenance trail of routing decisions in
// SQLite.
package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema

const decisionLogSchema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	track      TEXT NOT NULL,
	identifier TEXT,
	option     TEXT NOT NULL,
	arm        INTEGER NOT NULL,
	reward     REAL,
	state_json TEXT,
	reason     TEXT,
	created_at TEXT NOT NULL
);
`

// #endregion schema

// #region decision-log

// DecisionLog appends routing provenance rows to the decision_log table.
type DecisionLog struct {
	db *sql.DB
}

// NewDecisionLog initializes the decision_log table and returns a log.
func NewDecisionLog(db *sql.DB) (*DecisionLog, error) {
	if _, err := db.Exec(decisionLogSchema); err != nil {
		return nil, fmt.Errorf("create decision_log: %w", err)
	}
	return &DecisionLog{db: db}, nil
}

// Log writes one entry.
func (l *DecisionLog) Log(entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO decision_log (event_type, track, identifier, option, arm, reward, state_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EventType,
		entry.Track,
		nullIfEmpty(entry.Identifier),
		entry.Option,
		entry.Arm,
		entry.Reward,
		nullIfEmpty(entry.StateJSON),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// Recent returns the n most recent entries, newest first.
func (l *DecisionLog) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT event_type, track, identifier, option, arm, reward, state_json, reason, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query decision_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var identifier, stateJSON, reason sql.NullString
		var reward sql.NullFloat64
		var createdStr string
		if err := rows.Scan(&e.EventType, &e.Track, &identifier, &e.Option, &e.Arm, &reward, &stateJSON, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision_log: %w", err)
		}
		e.Identifier = identifier.String
		e.StateJSON = stateJSON.String
		e.Reason = reason.String
		if reward.Valid {
			r := reward.Float64
			e.Reward = &r
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision_log: %w", err)
	}
	return out, nil
}

// #endregion decision-log

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
