package tables

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinRegistry(t *testing.T) {
	reg, err := Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	tests := []struct {
		table     string
		writable  []string
		protected []string
	}{
		{"users", []string{"name", "email", "role"}, []string{"user_id", "tenant_id", "password"}},
		{"followups", []string{"subject", "status", "client_id"}, []string{"id", "user_id", "tenant_id"}},
		{"daily_activity", []string{"latitude", "description"}, []string{"id", "created_at"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			s, ok := reg.Lookup(tt.table)
			if !ok {
				t.Fatalf("%s not registered", tt.table)
			}
			for _, c := range tt.writable {
				if !s.IsWritable(c) {
					t.Errorf("%s should be writable", c)
				}
			}
			for _, c := range tt.protected {
				if s.IsWritable(c) || !s.IsProtected(c) {
					t.Errorf("%s should be protected", c)
				}
			}
		})
	}

	if _, ok := reg.Lookup("audit_logs"); ok {
		t.Error("audit_logs must not be reachable from the grid")
	}
}

func TestUsersIdentity(t *testing.T) {
	reg, _ := Registry()
	s, _ := reg.Lookup("users")
	if id, ok := s.IdentityOf(map[string]any{"user_id": "u-1"}); !ok || id != "u-1" {
		t.Errorf("IdentityOf = (%q, %v), want u-1", id, ok)
	}
}

func TestParse(t *testing.T) {
	src := `
tables:
  - name: invoices
    display: [id, number, total]
    writable: [total, id]
    protected: [id, tenant_id]
`
	schemas, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(schemas) != 1 || schemas[0].Name != "invoices" {
		t.Fatalf("schemas = %+v", schemas)
	}

	reg, err := Registry(schemas...)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	inv, _ := reg.Lookup("invoices")
	if inv.IsWritable("id") {
		t.Error("id is protected and must not be writable")
	}
	if !inv.IsWritable("total") {
		t.Error("total should be writable")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "tables:\n  - name: x\n    protect: [id]\n"},
		{"missing name", "tables:\n  - display: [a]\n"},
		{"not yaml", "tables: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	schemas, err := Parse(strings.NewReader(""))
	if err != nil || schemas != nil {
		t.Errorf("Parse(empty) = %v, %v", schemas, err)
	}
}

func TestLoadFile_DuplicateBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	src := "tables:\n  - name: users\n    writable: [password]\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}

	schemas, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := Registry(schemas...); err == nil {
		t.Error("overriding a built-in table should fail")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
