package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

func TestStore_CRUD(t *testing.T) {
	s := New()
	s.Seed("followups", "id", store.Row{"id": 1, "subject": "call"})
	ctx := context.Background()

	created, err := s.Create(ctx, "followups", store.Row{"subject": "email"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id, ok := store.FormatIdentity(created["id"])
	if !ok {
		t.Fatal("create did not assign an id")
	}
	if created["created_at"] == nil || created["updated_at"] == nil {
		t.Error("timestamps not assigned")
	}

	updated, err := s.Update(ctx, "followups", "1", store.Row{"subject": "visit"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["subject"] != "visit" || updated["id"] != float64(1) {
		t.Errorf("updated = %v", updated)
	}

	if err := s.Delete(ctx, "followups", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rows, err := s.List(ctx, "followups")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want 1", len(rows))
	}
}

func TestStore_Errors(t *testing.T) {
	s := New()
	s.AddTable("users", "user_id")
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() error
		status int
	}{
		{"unknown table", func() error { _, err := s.List(ctx, "secrets"); return err }, 404},
		{"update missing", func() error { _, err := s.Update(ctx, "users", "u-x", store.Row{"name": "x"}); return err }, 404},
		{"delete missing", func() error { return s.Delete(ctx, "users", "u-x") }, 404},
		{"duplicate create", func() error {
			if _, err := s.Create(ctx, "users", store.Row{"user_id": "u-1"}); err != nil {
				return err
			}
			_, err := s.Create(ctx, "users", store.Row{"user_id": "u-1"})
			return err
		}, 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var se *store.Error
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *store.Error", err)
			}
			if se.Kind != store.KindRejected || se.Status != tt.status {
				t.Errorf("kind/status = %v/%d, want rejected/%d", se.Kind, se.Status, tt.status)
			}
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	s.AddTable("users", "user_id")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.List(ctx, "users"); !store.IsTransport(err) {
		t.Errorf("err = %v, want transport failure", err)
	}
}

func TestStore_ListIsCopy(t *testing.T) {
	s := New()
	s.Seed("users", "user_id", store.Row{"user_id": "u-1", "name": "Ann"})

	rows, _ := s.List(context.Background(), "users")
	rows[0]["name"] = "changed"

	again, _ := s.List(context.Background(), "users")
	if again[0]["name"] != "Ann" {
		t.Error("store mutated through List result")
	}
}
