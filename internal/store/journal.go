package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weftui/weft/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added per-field index on mutations(field, seq)
const currentSchemaVersion = 1

// Mutation is one journaled state write. The ID is content-addressed over
// the field, path, value, and seq, so re-appending the same mutation is a
// no-op and two journals of the same run carry identical IDs.
type Mutation struct {
	ID          string
	Seq         int64
	Field       string
	Path        ir.Path
	Value       ir.Value
	ProgramHash string
}

// Journal provides durable storage for the mutation log.
// Uses SQLite with WAL mode for concurrent read access.
type Journal struct {
	db *sql.DB
}

// OpenJournal creates or opens a journal database at the given path.
// Applies required pragmas and migrations automatically; safe to call
// more than once on the same file.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under our single-writer discipline.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append inserts a mutation record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency; a duplicate ID is silently ignored while other constraint
// violations still surface as errors.
func (j *Journal) Append(m Mutation) error {
	pathJSON, err := json.Marshal(m.Path)
	if err != nil {
		return fmt.Errorf("append mutation: marshal path: %w", err)
	}
	valueJSON, err := ir.MarshalCanonical(m.Value)
	if err != nil {
		return fmt.Errorf("append mutation: marshal value: %w", err)
	}

	_, err = j.db.Exec(`
		INSERT INTO mutations (id, seq, field, path, value, program_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.Seq,
		m.Field,
		string(pathJSON),
		string(valueJSON),
		m.ProgramHash,
	)
	if err != nil {
		return fmt.Errorf("append mutation: %w", err)
	}
	return nil
}

// Mutations returns every journaled mutation in seq order.
func (j *Journal) Mutations() ([]Mutation, error) {
	rows, err := j.db.Query(`
		SELECT id, seq, field, path, value, program_hash
		FROM mutations
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read mutations: %w", err)
	}
	defer rows.Close()

	var muts []Mutation
	for rows.Next() {
		var m Mutation
		var pathJSON, valueJSON string
		if err := rows.Scan(&m.ID, &m.Seq, &m.Field, &pathJSON, &valueJSON, &m.ProgramHash); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		if err := json.Unmarshal([]byte(pathJSON), &m.Path); err != nil {
			return nil, fmt.Errorf("decode mutation %s path: %w", m.ID, err)
		}
		m.Value, err = ir.UnmarshalValue([]byte(valueJSON))
		if err != nil {
			return nil, fmt.Errorf("decode mutation %s value: %w", m.ID, err)
		}
		muts = append(muts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read mutations: %w", err)
	}
	return muts, nil
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
func (j *Journal) LastSeq() (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRow(`SELECT MAX(seq) FROM mutations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		// New databases get this index from schema.sql; databases created
		// before v1 need it added explicitly.
		if _, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_mutations_field
			ON mutations(field, seq)
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
