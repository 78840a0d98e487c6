package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/potential"
)

// timeFormat is fixed width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS potential_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	name          TEXT NOT NULL,
	definition    TEXT NOT NULL,
	note          TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES potential_versions(version_id)
);

CREATE INDEX IF NOT EXISTS potential_versions_name
	ON potential_versions (name, created_at);

CREATE TABLE IF NOT EXISTS evaluation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	input_kind    TEXT NOT NULL,
	points        INTEGER NOT NULL,
	strength      REAL NOT NULL,
	outcome       TEXT NOT NULL,
	error         TEXT,
	duration_us   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES potential_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_potential (
	name          TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES potential_versions(version_id)
);
`

// #endregion schema

// #region store-struct
// Store is a versioned catalog of potential definitions in SQLite. Each
// name has an active version; saving a definition appends a version whose
// parent is the previous active one.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already migrated database.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the catalog tables on db if they are missing.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save
// Save validates def by building it, then stores it as a new version of
// def.Name and makes that version active. Build failures are returned
// unchanged so callers can inspect the fault kind.
func (s *Store) Save(def potential.Definition, note string) (Record, error) {
	if def.Name == "" {
		return Record{}, fault.Config("a saved potential needs a name", nil)
	}
	if _, err := potential.BuildDefinition(def); err != nil {
		return Record{}, err
	}
	defJSON, err := json.Marshal(def)
	if err != nil {
		return Record{}, fmt.Errorf("marshal definition: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_potential WHERE name = ?`, def.Name).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get parent: %w", err)
	}

	rec := Record{
		VersionID:  uuid.New().String(),
		ParentID:   parent.String,
		Name:       def.Name,
		Definition: def,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = tx.Exec(
		`INSERT INTO potential_versions (version_id, parent_id, name, definition, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), rec.Name, string(defJSON), nullIfEmpty(note),
		rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_potential (name, version_id) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET version_id = excluded.version_id`,
		rec.Name, rec.VersionID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save

// #region get
// GetActive reads the active version of name.
func (s *Store) GetActive(name string) (Record, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_potential WHERE name = ?`, name).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get active %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get active %s: %w", name, err)
	}
	return s.GetVersion(versionID)
}

// GetVersion retrieves a specific version by ID.
func (s *Store) GetVersion(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, name, definition, note, created_at
		 FROM potential_versions WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get

// #region rollback
// Rollback points name back at one of its earlier versions.
func (s *Store) Rollback(name, targetVersionID string) error {
	var owner string
	err := s.db.QueryRow(
		`SELECT name FROM potential_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %s: %w", targetVersionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if owner != name {
		return fmt.Errorf("version %s belongs to %q, not %q", targetVersionID, owner, name)
	}

	_, err = s.db.Exec(`UPDATE active_potential SET version_id = ? WHERE name = ?`, targetVersionID, name)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list
// ListVersions returns the most recent versions, newest first. An empty
// name lists every potential.
func (s *Store) ListVersions(name string, limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, name, definition, note, created_at
		 FROM potential_versions WHERE (? = '' OR name = ?)
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, name, name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListActive returns every name with its active version, sorted by name.
func (s *Store) ListActive() ([]ActiveEntry, error) {
	rows, err := s.db.Query(`SELECT name, version_id FROM active_potential ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	defer rows.Close()

	var out []ActiveEntry
	for rows.Next() {
		var e ActiveEntry
		if err := rows.Scan(&e.Name, &e.VersionID); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var parentID, note sql.NullString
	var defJSON, createdStr string
	if err := row.Scan(&rec.VersionID, &parentID, &rec.Name, &defJSON, &note, &createdStr); err != nil {
		return Record{}, err
	}
	rec.ParentID = parentID.String
	rec.Note = note.String
	if err := json.Unmarshal([]byte(defJSON), &rec.Definition); err != nil {
		return Record{}, fmt.Errorf("unmarshal definition: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
