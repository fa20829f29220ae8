package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

func TestRowCache_LoadUnregistered(t *testing.T) {
	client := newFakeClient(nil)
	cache := NewRowCache(testRegistry(t), client)

	err := cache.Load(context.Background(), "secrets")
	var unreg *UnregisteredTableError
	if !errors.As(err, &unreg) {
		t.Fatalf("Load err = %v, want *UnregisteredTableError", err)
	}
	if n := len(client.Calls()); n != 0 {
		t.Errorf("store called %d times for unregistered table", n)
	}
}

func TestRowCache_LoadNormalizes(t *testing.T) {
	client := newFakeClient(map[string][]store.Row{
		"followups": {
			{"id": 1, "subject": "call", "status": "open"},
			{"id": int64(2), "subject": "email", "status": nil},
		},
	})
	cache := NewRowCache(testRegistry(t), client)

	if err := cache.Load(context.Background(), "followups"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cache.Table() != "followups" || cache.Len() != 2 {
		t.Fatalf("Table/Len = %q/%d, want followups/2", cache.Table(), cache.Len())
	}
	row, ok := cache.Find("2")
	if !ok {
		t.Fatal("row 2 not found")
	}
	if row["id"] != float64(2) {
		t.Errorf("id = %#v, want float64(2)", row["id"])
	}
}

func TestRowCache_LoadFailureClears(t *testing.T) {
	client := newFakeClient(map[string][]store.Row{
		"followups": {{"id": "a", "subject": "x"}},
	})
	cache := NewRowCache(testRegistry(t), client)
	ctx := context.Background()

	if err := cache.Load(ctx, "followups"); err != nil {
		t.Fatal(err)
	}

	client.listErr = store.Transport("list", "followups", errors.New("connection refused"))
	if err := cache.Load(ctx, "followups"); err == nil {
		t.Fatal("expected load error")
	}
	if cache.Len() != 0 || cache.Table() != "" {
		t.Errorf("cache not cleared after failed load: len=%d table=%q", cache.Len(), cache.Table())
	}
}

func TestRowCache_LocalMutations(t *testing.T) {
	client := newFakeClient(map[string][]store.Row{
		"users": {
			{"user_id": "u-1", "name": "Ann"},
			{"user_id": "u-2", "name": "Bob"},
			{"user_id": "u-3", "name": "Cy"},
		},
	})
	cache := NewRowCache(testRegistry(t), client)
	if err := cache.Load(context.Background(), "users"); err != nil {
		t.Fatal(err)
	}

	if !cache.ApplyLocalUpdate("u-1", "name", "Anna") {
		t.Fatal("ApplyLocalUpdate(u-1) = false")
	}
	if v, _ := cache.Value("u-1", "name"); v != "Anna" {
		t.Errorf("name = %#v, want Anna", v)
	}
	if cache.ApplyLocalUpdate("missing", "name", "x") {
		t.Error("ApplyLocalUpdate on missing row should report false")
	}

	if !cache.RemoveLocal("u-2") {
		t.Fatal("RemoveLocal(u-2) = false")
	}
	if _, ok := cache.Find("u-2"); ok {
		t.Error("u-2 still present after RemoveLocal")
	}
	if row, ok := cache.Find("u-3"); !ok || row["name"] != "Cy" {
		t.Errorf("index broken after RemoveLocal: %v %v", row, ok)
	}

	if !cache.InsertLocal(store.Row{"user_id": "u-4", "name": "Di"}) {
		t.Fatal("InsertLocal(u-4) = false")
	}
	if cache.InsertLocal(store.Row{"user_id": "u-4"}) {
		t.Error("duplicate InsertLocal should be refused")
	}
	if cache.InsertLocal(store.Row{"name": "anonymous"}) {
		t.Error("InsertLocal without identity should be refused")
	}
	if cache.Len() != 3 {
		t.Errorf("Len = %d, want 3", cache.Len())
	}
}

func TestRowCache_RowsIsCopy(t *testing.T) {
	client := newFakeClient(map[string][]store.Row{
		"users": {{"user_id": "u-1", "name": "Ann"}},
	})
	cache := NewRowCache(testRegistry(t), client)
	if err := cache.Load(context.Background(), "users"); err != nil {
		t.Fatal(err)
	}

	rows := cache.Rows()
	rows[0]["name"] = "mutated"
	found, _ := cache.Find("u-1")
	found["name"] = "mutated too"

	if v, _ := cache.Value("u-1", "name"); v != "Ann" {
		t.Errorf("cache mutated through a returned row: %#v", v)
	}
}
