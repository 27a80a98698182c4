package scope

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteScope persists bindings in SQLite so rule state survives restarts.
// Bindings live under a namespace, letting several scopes share one file.
//
// Values round-trip through JSON: integers come back as int64, other
// numbers as float64, objects as map[string]any and arrays as []any.
type SQLiteScope struct {
	db        *sql.DB
	namespace string
	parent    Resolver
	mu        sync.RWMutex
	closed    bool
}

// NewSQLiteScope opens (or creates) a SQLite-backed scope.
// The path should be a file path (e.g., "./vars.db") or ":memory:" for testing.
func NewSQLiteScope(path, namespace string, parent Resolver) (*SQLiteScope, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to :memory: would see its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bindings (
			namespace TEXT NOT NULL,
			name TEXT NOT NULL,
			value BLOB NOT NULL,
			updated TEXT NOT NULL,
			PRIMARY KEY (namespace, name)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteScope{db: db, namespace: namespace, parent: parent}, nil
}

// IsResolvable implements Resolver.
func (s *SQLiteScope) IsResolvable(name string) bool {
	if ok, err := s.has(name); err == nil && ok {
		return true
	}
	return s.parent != nil && s.parent.IsResolvable(name)
}

// Get implements Resolver.
func (s *SQLiteScope) Get(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var data []byte
	err := s.db.QueryRow(`
		SELECT value FROM bindings
		WHERE namespace = ? AND name = ?
	`, s.namespace, name).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		if s.parent != nil {
			return s.parent.Get(name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load binding %s: %w", name, err)
	}
	return decodeValue(data)
}

// Set implements Resolver.
func (s *SQLiteScope) Set(name string, value any) error {
	local, err := s.has(name)
	if err != nil {
		return err
	}
	if !local && s.parent != nil && s.parent.IsResolvable(name) {
		return s.parent.Set(name, value)
	}
	return s.Define(name, value)
}

// Define implements Resolver.
func (s *SQLiteScope) Define(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode binding %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, err = s.db.Exec(`
		INSERT INTO bindings (namespace, name, value, updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, name) DO UPDATE SET
			value = excluded.value,
			updated = excluded.updated
	`, s.namespace, name, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save binding %s: %w", name, err)
	}
	return nil
}

// Delete removes a binding from this namespace.
// Returns nil if the binding doesn't exist.
func (s *SQLiteScope) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, err := s.db.Exec(`
		DELETE FROM bindings
		WHERE namespace = ? AND name = ?
	`, s.namespace, name)
	if err != nil {
		return fmt.Errorf("delete binding %s: %w", name, err)
	}
	return nil
}

// Names returns the names bound in this namespace, sorted.
func (s *SQLiteScope) Names() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT name FROM bindings
		WHERE namespace = ?
		ORDER BY name
	`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return names, nil
}

// Close releases the database. Closing twice is safe.
func (s *SQLiteScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func (s *SQLiteScope) has(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM bindings
		WHERE namespace = ? AND name = ?
	`, s.namespace, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup binding %s: %w", name, err)
	}
	return n > 0, nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode binding: %w", err)
	}
	return normalizeJSON(v), nil
}

// normalizeJSON replaces json.Number with int64 or float64, recursively.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, e := range val {
			val[k] = normalizeJSON(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = normalizeJSON(e)
		}
		return val
	}
	return v
}
