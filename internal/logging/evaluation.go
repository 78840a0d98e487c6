package logging

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/potential/internal/fault"
)

// #region log-evaluation
// LogEvaluation writes an entry to the evaluation_log table.
func LogEvaluation(db *sql.DB, entry EvaluationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO evaluation_log (version_id, input_kind, points, strength, outcome, error, duration_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.VersionID,
		entry.InputKind,
		entry.Points,
		entry.Strength,
		entry.Outcome,
		nullIfEmpty(entry.Error),
		entry.Duration.Microseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log evaluation: %w", err)
	}
	return nil
}
// #endregion log-evaluation

// #region list-evaluations
// ListEvaluations returns the most recent evaluation_log rows, newest first.
// An empty versionID lists every version.
func ListEvaluations(db *sql.DB, versionID string, limit int) ([]EvaluationEntry, error) {
	rows, err := db.Query(
		`SELECT version_id, input_kind, points, strength, outcome, error, duration_us, created_at
		 FROM evaluation_log WHERE (? = '' OR version_id = ?)
		 ORDER BY rowid DESC LIMIT ?`, versionID, versionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []EvaluationEntry
	for rows.Next() {
		var e EvaluationEntry
		var errText sql.NullString
		var durationUS int64
		var created string
		if err := rows.Scan(&e.VersionID, &e.InputKind, &e.Points, &e.Strength, &e.Outcome, &errText, &durationUS, &created); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		e.Error = errText.String
		e.Duration = time.Duration(durationUS) * time.Microsecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-evaluations

// #region outcome
// OutcomeOf classifies an evaluation error for the outcome column.
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var fe *fault.Error
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return OutcomeInternal
}
// #endregion outcome

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
