// Package memory is an in-process store.Client for development and tests.
package memory

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

const notFoundDetail = "Resource not found or access denied."

// Store keeps rows per table in memory. Tables must be declared with
// AddTable or Seed before use; any other table name is rejected.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	now    func() time.Time
}

type table struct {
	key  string
	rows []store.Row
}

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]*table), now: time.Now}
}

// AddTable declares table with the given identity column.
func (s *Store) AddTable(name, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = &table{key: key}
	}
}

// Seed declares table and appends rows to it.
func (s *Store) Seed(name, key string, rows ...store.Row) {
	s.AddTable(name, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[name]
	for _, r := range rows {
		t.rows = append(t.rows, store.NormalizeRow(r.Clone()))
	}
}

// Tables returns the declared table names.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Store) get(op, name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, store.Rejected(op, name, http.StatusNotFound, "Table not found")
	}
	return t, nil
}

func (t *table) find(identity string) int {
	for i, r := range t.rows {
		if id, ok := store.FormatIdentity(r[t.key]); ok && id == identity {
			return i
		}
	}
	return -1
}

func (s *Store) List(ctx context.Context, name string) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Transport("list", name, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.get("list", name)
	if err != nil {
		return nil, err
	}
	out := make([]store.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, name string, fields store.Row) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Transport("create", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get("create", name)
	if err != nil {
		return nil, err
	}
	row := store.NormalizeRow(fields.Clone())
	if _, ok := store.FormatIdentity(row[t.key]); !ok {
		row[t.key] = uuid.NewString()
	}
	id, _ := store.FormatIdentity(row[t.key])
	if t.find(id) >= 0 {
		return nil, store.Rejected("create", name, http.StatusConflict, "duplicate key value violates unique constraint")
	}
	ts := s.now().UTC().Format(time.RFC3339Nano)
	row["created_at"] = ts
	row["updated_at"] = ts
	t.rows = append(t.rows, row)
	return row.Clone(), nil
}

func (s *Store) Update(ctx context.Context, name, identity string, fields store.Row) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Transport("update", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get("update", name)
	if err != nil {
		return nil, err
	}
	i := t.find(identity)
	if i < 0 {
		return nil, store.Rejected("update", name, http.StatusNotFound, notFoundDetail)
	}
	row := t.rows[i]
	for k, v := range fields {
		row[k] = store.NormalizeValue(v)
	}
	row["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)
	return row.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, name, identity string) error {
	if err := ctx.Err(); err != nil {
		return store.Transport("delete", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get("delete", name)
	if err != nil {
		return err
	}
	i := t.find(identity)
	if i < 0 {
		return store.Rejected("delete", name, http.StatusNotFound, notFoundDetail)
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return nil
}

var _ store.Client = (*Store)(nil)
