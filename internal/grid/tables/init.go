// Package tables holds the built-in table security schemas.
// Each table file registers its schema from init().
package tables

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/gridconsole/internal/grid"
)

var (
	builtins   = make(map[string]grid.TableSecuritySchema)
	builtinsMu sync.RWMutex
)

// register adds a built-in schema.
// Panics if a table with the same name is already registered.
func register(s grid.TableSecuritySchema) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()

	if _, exists := builtins[s.Name]; exists {
		panic(fmt.Sprintf("table already registered: %s", s.Name))
	}
	builtins[s.Name] = s
}

// All returns the built-in schemas sorted by name.
func All() []grid.TableSecuritySchema {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()

	out := make([]grid.TableSecuritySchema, 0, len(builtins))
	for _, s := range builtins {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Registry builds the immutable registry from the built-ins plus extra.
// An extra schema may not reuse a built-in name.
func Registry(extra ...grid.TableSecuritySchema) (*grid.Registry, error) {
	return grid.NewRegistry(append(All(), extra...)...)
}
