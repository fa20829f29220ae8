package grid

import (
	"context"
	"sync"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

// RowCache mirrors the rows of the currently selected table.
//
// It is safe for concurrent readers. Writes come only from the Controller
// that owns it, and only after the store has confirmed the change.
type RowCache struct {
	registry *Registry
	client   store.Client

	mu     sync.RWMutex
	table  string
	schema TableSecuritySchema
	rows   []store.Row
	index  map[string]int
}

// NewRowCache returns an empty cache reading through client.
func NewRowCache(registry *Registry, client store.Client) *RowCache {
	return &RowCache{registry: registry, client: client}
}

// Load replaces the cache with every row of table.
// On any failure the cache is left empty rather than stale.
func (c *RowCache) Load(ctx context.Context, table string) error {
	schema, err := c.registry.SchemaFor(table)
	if err != nil {
		return err
	}

	rows, err := c.client.List(ctx, table)
	if err != nil {
		c.Clear()
		return err
	}

	normalized := make([]store.Row, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		r = store.NormalizeRow(r.Clone())
		if id, ok := schema.IdentityOf(r); ok {
			if _, dup := index[id]; !dup {
				index[id] = len(normalized)
			}
		}
		normalized = append(normalized, r)
	}

	c.mu.Lock()
	c.table = table
	c.schema = schema
	c.rows = normalized
	c.index = index
	c.mu.Unlock()
	return nil
}

// Find returns a copy of the row with the given identity.
func (c *RowCache) Find(identity string) (store.Row, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[identity]
	if !ok {
		return nil, false
	}
	return c.rows[i].Clone(), true
}

// Value returns the cached value of one cell.
func (c *RowCache) Value(identity, column string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[identity]
	if !ok {
		return nil, false
	}
	v, ok := c.rows[i][column]
	return v, ok
}

// ApplyLocalUpdate writes one confirmed value into the cached row.
func (c *RowCache) ApplyLocalUpdate(identity, column string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[identity]
	if !ok {
		return false
	}
	c.rows[i][column] = store.NormalizeValue(value)
	return true
}

// InsertLocal appends a confirmed row. Rows without an identity are
// rejected since they could never be edited or deleted.
func (c *RowCache) InsertLocal(row store.Row) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	row = store.NormalizeRow(row.Clone())
	id, ok := c.schema.IdentityOf(row)
	if !ok {
		return false
	}
	if _, exists := c.index[id]; exists {
		return false
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.index[id] = len(c.rows)
	c.rows = append(c.rows, row)
	return true
}

// RemoveLocal drops a confirmed-deleted row.
func (c *RowCache) RemoveLocal(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[identity]
	if !ok {
		return false
	}
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	c.reindex()
	return true
}

// reindex rebuilds the identity index. Caller holds mu.
func (c *RowCache) reindex() {
	c.index = make(map[string]int, len(c.rows))
	for i, r := range c.rows {
		if id, ok := c.schema.IdentityOf(r); ok {
			if _, dup := c.index[id]; !dup {
				c.index[id] = i
			}
		}
	}
}

// Rows returns a deep copy of the cached rows in load order.
func (c *RowCache) Rows() []store.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]store.Row, len(c.rows))
	for i, r := range c.rows {
		out[i] = r.Clone()
	}
	return out
}

// Table returns the name of the loaded table, or "" when empty.
func (c *RowCache) Table() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

// Len returns the number of cached rows.
func (c *RowCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Clear empties the cache and forgets the table selection.
func (c *RowCache) Clear() {
	c.mu.Lock()
	c.table = ""
	c.schema = TableSecuritySchema{}
	c.rows = nil
	c.index = nil
	c.mu.Unlock()
}
