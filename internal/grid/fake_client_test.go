package grid

import (
	"context"
	"sync"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

type call struct {
	Op       string
	Table    string
	Identity string
	Fields   store.Row
}

// fakeClient records every call and serves rows from a per-table map.
// Setting block makes the next write wait until release is closed.
type fakeClient struct {
	mu    sync.Mutex
	rows  map[string][]store.Row
	calls []call

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	created store.Row

	block   chan struct{} // closed by the test to let a blocked write finish
	entered chan struct{} // receives once a blocked write has started
}

func newFakeClient(rows map[string][]store.Row) *fakeClient {
	if rows == nil {
		rows = map[string][]store.Row{}
	}
	return &fakeClient{rows: rows}
}

func (f *fakeClient) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeClient) wait(ctx context.Context) {
	f.mu.Lock()
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if block == nil {
		return
	}
	if entered != nil {
		entered <- struct{}{}
	}
	select {
	case <-block:
	case <-ctx.Done():
	}
}

func (f *fakeClient) List(ctx context.Context, table string) ([]store.Row, error) {
	f.record(call{Op: "list", Table: table})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]store.Row, 0, len(f.rows[table]))
	for _, r := range f.rows[table] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeClient) Create(ctx context.Context, table string, fields store.Row) (store.Row, error) {
	f.record(call{Op: "create", Table: table, Fields: fields.Clone()})
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	row := fields.Clone()
	for k, v := range f.created {
		row[k] = v
	}
	f.rows[table] = append(f.rows[table], row)
	return row.Clone(), nil
}

func (f *fakeClient) Update(ctx context.Context, table, identity string, fields store.Row) (store.Row, error) {
	f.record(call{Op: "update", Table: table, Identity: identity, Fields: fields.Clone()})
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for _, r := range f.rows[table] {
		if id, _ := store.FormatIdentity(r["id"]); id == identity {
			for k, v := range fields {
				r[k] = v
			}
			return r.Clone(), nil
		}
		if id, _ := store.FormatIdentity(r["user_id"]); id == identity {
			for k, v := range fields {
				r[k] = v
			}
			return r.Clone(), nil
		}
	}
	return fields.Clone(), nil
}

func (f *fakeClient) Delete(ctx context.Context, table, identity string) error {
	f.record(call{Op: "delete", Table: table, Identity: identity})
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[table][:0]
	for _, r := range f.rows[table] {
		id, _ := store.FormatIdentity(r["id"])
		uid, _ := store.FormatIdentity(r["user_id"])
		if id != identity && uid != identity {
			kept = append(kept, r)
		}
	}
	f.rows[table] = kept
	return nil
}

func (f *fakeClient) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

// writes returns the calls other than list.
func (f *fakeClient) writes() []call {
	var out []call
	for _, c := range f.Calls() {
		if c.Op != "list" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeClient) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// blockWrites makes subsequent writes wait for the returned release func.
func (f *fakeClient) blockWrites() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	block := f.block
	var once sync.Once
	return f.entered, func() {
		once.Do(func() { close(block) })
	}
}
