// Package index implements the persistent installed-package record
// index backed by SQLite. The lifecycle controller owns where and when
// an index is created, opened, or replaced; this package only knows how
// to store and query records.
package index

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	errUtils "github.com/sysinv/sysinv/errors"
)

// SchemaVersion is stamped into every index this package creates.
// An index stamped with any other value fails the freshness check and
// is rebuilt.
const SchemaVersion = "1.0"

// Property keys stored at creation time.
const (
	propSchemaVersion = "schema_version"
	propCreatedAt     = "created_at"
)

// Mode selects how an existing index file is opened.
type Mode int

const (
	// Read opens the index for queries only.
	Read Mode = iota
	// ReadWrite opens the index for queries and record mutation.
	ReadWrite
)

// Record is one installed-package entry. Scope is empty for packages
// that carry no machine/user axis.
type Record struct {
	Identity string
	Name     string
	Version  string
	Scope    string
	PathHint string
}

// Match is a search result: a record plus its index-assigned id.
type Match struct {
	ID     int64
	Record Record
}

// Filter narrows a Search. The zero Filter matches every record.
type Filter struct {
	Identity string
}

// Index is an open package-record index.
type Index struct {
	db       *sql.DB
	path     string
	readOnly bool
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		scope TEXT NOT NULL DEFAULT '',
		path_hint TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_records_identity_scope ON records(identity, scope)`,

	`CREATE TABLE IF NOT EXISTS metadata (
		id INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (id, key)
	)`,

	`CREATE TABLE IF NOT EXISTS properties (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func openDB(dsn string, filePragmas bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000", // Wait up to 5s if database is locked
	}
	if filePragmas {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",   // Write-Ahead Logging: faster, non-blocking writes
			"PRAGMA synchronous = NORMAL", // Reduce fsyncs while maintaining crash safety
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q failed: %w", pragma, err)
		}
	}

	return db, nil
}

func (i *Index) migrate() error {
	for _, migration := range migrations {
		if _, err := i.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (i *Index) stamp() error {
	now := time.Now().UTC().Format(time.RFC3339)
	for key, value := range map[string]string{
		propSchemaVersion: SchemaVersion,
		propCreatedAt:     now,
	} {
		if _, err := i.db.Exec(
			`INSERT OR REPLACE INTO properties (key, value) VALUES (?, ?)`, key, value); err != nil {
			return err
		}
	}
	return nil
}

// CreateNew creates a brand-new index file at path, stamping it with the
// current schema version and creation time. The file must not already
// hold an incompatible database.
func CreateNew(path string) (*Index, error) {
	db, err := openDB(fmt.Sprintf("file:%s?mode=rwc", path), true)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrIndexCreate).
			WithCause(err).
			WithContext("path", path).
			Err()
	}

	idx := &Index{db: db, path: path}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, errUtils.Build(errUtils.ErrIndexCreate).WithCause(err).WithContext("path", path).Err()
	}
	if err := idx.stamp(); err != nil {
		db.Close()
		return nil, errUtils.Build(errUtils.ErrIndexCreate).WithCause(err).WithContext("path", path).Err()
	}
	return idx, nil
}

// CreateInMemory creates a transient index held only in process memory.
// It is the last-resort tier when the on-disk cache cannot be used.
func CreateInMemory() (*Index, error) {
	db, err := openDB(":memory:", false)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrIndexCreate).WithCause(err).Err()
	}

	idx := &Index{db: db, path: ":memory:"}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, errUtils.Build(errUtils.ErrIndexCreate).WithCause(err).Err()
	}
	if err := idx.stamp(); err != nil {
		db.Close()
		return nil, errUtils.Build(errUtils.ErrIndexCreate).WithCause(err).Err()
	}
	return idx, nil
}

// Open opens an existing index file. Opening fails if the file does not
// exist; creation is always explicit via CreateNew.
func Open(path string, mode Mode) (*Index, error) {
	uriMode := "rw"
	if mode == Read {
		uriMode = "ro"
	}

	db, err := openDB(fmt.Sprintf("file:%s?mode=%s", path, uriMode), mode == ReadWrite)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrIndexOpen).
			WithCause(err).
			WithContext("path", path).
			Err()
	}

	idx := &Index{db: db, path: path, readOnly: mode == Read}

	// Force the lazy connection open so a missing file fails here, not
	// on first query.
	var ok int
	if err := db.QueryRow(`SELECT 1`).Scan(&ok); err != nil {
		db.Close()
		return nil, errUtils.Build(errUtils.ErrIndexOpen).
			WithCause(err).
			WithContext("path", path).
			Err()
	}

	return idx, nil
}

// Path returns the location this index was opened from.
func (i *Index) Path() string {
	return i.path
}

// Close releases the underlying database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

// SchemaVersion returns the schema version stamped at creation, or an
// empty string if the stamp is missing.
func (i *Index) SchemaVersion() (string, error) {
	return i.property(propSchemaVersion)
}

// CreatedAt returns the creation time stamped at creation.
func (i *Index) CreatedAt() (time.Time, error) {
	raw, err := i.property(propCreatedAt)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errUtils.Build(errUtils.ErrIndexQuery).
			WithCause(err).
			WithContext("property", propCreatedAt).
			Err()
	}
	return t, nil
}

func (i *Index) property(key string) (string, error) {
	var value string
	err := i.db.QueryRow(`SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("property", key).Err()
	}
	return value, nil
}

// AddRecord inserts a record and returns its assigned id.
func (i *Index) AddRecord(rec Record) (int64, error) {
	if i.readOnly {
		return 0, errUtils.Build(errUtils.ErrIndexReadOnly).WithContext("identity", rec.Identity).Err()
	}

	res, err := i.db.Exec(
		`INSERT INTO records (identity, name, version, scope, path_hint) VALUES (?, ?, ?, ?, ?)`,
		rec.Identity, rec.Name, rec.Version, rec.Scope, rec.PathHint)
	if err != nil {
		return 0, errUtils.Build(errUtils.ErrIndexQuery).
			WithCause(err).
			WithContext("identity", rec.Identity).
			Err()
	}
	return res.LastInsertId()
}

// UpdateRecord replaces the record stored under id.
func (i *Index) UpdateRecord(id int64, rec Record) error {
	if i.readOnly {
		return errUtils.Build(errUtils.ErrIndexReadOnly).WithContext("id", id).Err()
	}

	res, err := i.db.Exec(
		`UPDATE records SET identity = ?, name = ?, version = ?, scope = ?, path_hint = ? WHERE id = ?`,
		rec.Identity, rec.Name, rec.Version, rec.Scope, rec.PathHint, id)
	if err != nil {
		return errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	if n == 0 {
		return errUtils.Build(errUtils.ErrRecordNotFound).WithContext("id", id).Err()
	}
	return nil
}

// FindByIdentity returns the id of the record with the given identity
// and scope, if one exists.
func (i *Index) FindByIdentity(identity, scope string) (int64, bool, error) {
	var id int64
	err := i.db.QueryRow(
		`SELECT id FROM records WHERE identity = ? AND scope = ?`, identity, scope).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errUtils.Build(errUtils.ErrIndexQuery).
			WithCause(err).
			WithContext("identity", identity).
			Err()
	}
	return id, true, nil
}

// SetMetadata stores a metadata key/value for the record with id.
func (i *Index) SetMetadata(id int64, key, value string) error {
	if i.readOnly {
		return errUtils.Build(errUtils.ErrIndexReadOnly).WithContext("id", id).Err()
	}

	if _, err := i.db.Exec(
		`INSERT OR REPLACE INTO metadata (id, key, value) VALUES (?, ?, ?)`, id, key, value); err != nil {
		return errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	return nil
}

// GetMetadata returns the metadata value for the record with id, or an
// empty string if unset.
func (i *Index) GetMetadata(id int64, key string) (string, error) {
	var value string
	err := i.db.QueryRow(
		`SELECT value FROM metadata WHERE id = ? AND key = ?`, id, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	return value, nil
}

// Search returns every record matching the filter, ordered by id.
// The zero filter returns the whole index.
func (i *Index) Search(filter Filter) ([]Match, error) {
	query := `SELECT id, identity, name, version, scope, path_hint FROM records`
	var args []interface{}
	if filter.Identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, filter.Identity)
	}
	query += ` ORDER BY id`

	rows, err := i.db.Query(query, args...)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).Err()
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Record.Identity, &m.Record.Name, &m.Record.Version,
			&m.Record.Scope, &m.Record.PathHint); err != nil {
			return nil, errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).Err()
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).Err()
	}
	return matches, nil
}

// RemoveByID deletes the record with id and its metadata.
func (i *Index) RemoveByID(id int64) error {
	if i.readOnly {
		return errUtils.Build(errUtils.ErrIndexReadOnly).WithContext("id", id).Err()
	}

	if _, err := i.db.Exec(`DELETE FROM metadata WHERE id = ?`, id); err != nil {
		return errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	res, err := i.db.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errUtils.Build(errUtils.ErrIndexQuery).WithCause(err).WithContext("id", id).Err()
	}
	if n == 0 {
		return errUtils.Build(errUtils.ErrRecordNotFound).WithContext("id", id).Err()
	}
	return nil
}
