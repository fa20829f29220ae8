package grid

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

// DefaultIdentity lists the identity columns tried, in order, when a schema
// does not declare its own.
var DefaultIdentity = []string{"id", "user_id"}

// TableSecuritySchema declares which columns of one table the grid may show
// and write.
//
// The effective writable set is Writable minus Protected; Protected always
// wins. A protected column does not have to appear in Display.
type TableSecuritySchema struct {
	Name      string   `yaml:"name"`
	Display   []string `yaml:"display"`
	Writable  []string `yaml:"writable"`
	Protected []string `yaml:"protected"`
	Identity  []string `yaml:"identity,omitempty"`

	writable  map[string]struct{}
	protected map[string]struct{}
	display   map[string]struct{}
}

// compile validates the declaration and builds the lookup sets.
func (s TableSecuritySchema) compile() (TableSecuritySchema, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return s, fmt.Errorf("schema: table name is required")
	}

	var err error
	if s.display, err = columnSet(s.Name, "display", s.Display); err != nil {
		return s, err
	}
	if s.writable, err = columnSet(s.Name, "writable", s.Writable); err != nil {
		return s, err
	}
	if s.protected, err = columnSet(s.Name, "protected", s.Protected); err != nil {
		return s, err
	}
	if len(s.Identity) == 0 {
		s.Identity = DefaultIdentity
	}
	if _, err = columnSet(s.Name, "identity", s.Identity); err != nil {
		return s, err
	}

	s.Display = cloneStrings(s.Display)
	s.Writable = cloneStrings(s.Writable)
	s.Protected = cloneStrings(s.Protected)
	s.Identity = cloneStrings(s.Identity)
	return s, nil
}

func columnSet(table, field string, cols []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("schema %s: empty column name in %s", table, field)
		}
		set[c] = struct{}{}
	}
	return set, nil
}

// IsProtected reports whether col must never appear in a mutation payload.
func (s TableSecuritySchema) IsProtected(col string) bool {
	_, ok := s.protected[col]
	return ok
}

// IsWritable reports whether col is in the effective writable set.
// Columns absent from Writable are not writable, whatever Protected says.
func (s TableSecuritySchema) IsWritable(col string) bool {
	if s.IsProtected(col) {
		return false
	}
	_, ok := s.writable[col]
	return ok
}

// IsDisplayed reports whether col is rendered in the grid.
func (s TableSecuritySchema) IsDisplayed(col string) bool {
	_, ok := s.display[col]
	return ok
}

// EffectiveWritable returns Writable minus Protected in declaration order.
func (s TableSecuritySchema) EffectiveWritable() []string {
	out := make([]string, 0, len(s.Writable))
	for _, c := range s.Writable {
		if !s.IsProtected(c) {
			out = append(out, c)
		}
	}
	return out
}

// IdentityOf resolves the identifying value of row by checking each
// identity column in order.
func (s TableSecuritySchema) IdentityOf(row store.Row) (string, bool) {
	cols := s.Identity
	if len(cols) == 0 {
		cols = DefaultIdentity
	}
	for _, c := range cols {
		if id, ok := store.FormatIdentity(row[c]); ok {
			return id, true
		}
	}
	return "", false
}

// clone returns a copy whose slices do not alias the registry's.
// The sets are never mutated after compile and are shared.
func (s TableSecuritySchema) clone() TableSecuritySchema {
	s.Display = cloneStrings(s.Display)
	s.Writable = cloneStrings(s.Writable)
	s.Protected = cloneStrings(s.Protected)
	s.Identity = cloneStrings(s.Identity)
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Registry is the immutable allow-list of tables the grid may touch.
// A table missing from the registry does not exist as far as the grid is
// concerned.
type Registry struct {
	schemas map[string]TableSecuritySchema
}

// NewRegistry validates and freezes the given schemas.
// Duplicate table names are an error.
func NewRegistry(schemas ...TableSecuritySchema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]TableSecuritySchema, len(schemas))}
	for _, s := range schemas {
		compiled, err := s.compile()
		if err != nil {
			return nil, err
		}
		if _, exists := r.schemas[compiled.Name]; exists {
			return nil, fmt.Errorf("schema: table already registered: %s", compiled.Name)
		}
		r.schemas[compiled.Name] = compiled
	}
	return r, nil
}

// Lookup returns the schema for table and whether it is registered.
func (r *Registry) Lookup(table string) (TableSecuritySchema, bool) {
	if r == nil {
		return TableSecuritySchema{}, false
	}
	s, ok := r.schemas[table]
	if !ok {
		return TableSecuritySchema{}, false
	}
	return s.clone(), true
}

// SchemaFor is Lookup with the miss reported as *UnregisteredTableError.
func (r *Registry) SchemaFor(table string) (TableSecuritySchema, error) {
	s, ok := r.Lookup(table)
	if !ok {
		return TableSecuritySchema{}, &UnregisteredTableError{Table: table}
	}
	return s, nil
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.schemas)
}
