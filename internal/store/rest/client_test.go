package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.EscapedPath(), Auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		reqs = append(reqs, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newClient(t *testing.T, srv *httptest.Server, mod func(*Config)) *Client {
	t.Helper()
	cfg := Config{BaseURL: srv.URL + "/api", Token: "tok-123", Timeout: 2 * time.Second}
	if mod != nil {
		mod(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"bad scheme", "ftp://example.com/api"},
		{"unparseable", "http://[::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(Config{BaseURL: tt.url}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClient_RequestContract(t *testing.T) {
	srv, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"id": 1, "subject": "call", "done": false, "notes": null}]`)
		case http.MethodDelete:
			_, _ = io.WriteString(w, `{"status": "success"}`)
		default:
			_, _ = io.WriteString(w, `{"id": 2, "subject": "email"}`)
		}
	})
	c := newClient(t, srv, nil)
	ctx := context.Background()

	rows, err := c.List(ctx, "followups")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != float64(1) || rows[0]["done"] != false || rows[0]["notes"] != nil {
		t.Errorf("rows = %#v", rows)
	}

	row, err := c.Create(ctx, "followups", store.Row{"subject": "email"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row["id"] != float64(2) {
		t.Errorf("created id = %#v, want 2", row["id"])
	}
	if _, err := c.Update(ctx, "followups", "2", store.Row{"subject": "visit"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := c.Delete(ctx, "followups", "a/b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []struct{ method, path string }{
		{"GET", "/api/followups"},
		{"POST", "/api/followups"},
		{"PATCH", "/api/followups/2"},
		{"DELETE", "/api/followups/a%2Fb"},
	}
	if len(*reqs) != len(want) {
		t.Fatalf("got %d requests, want %d", len(*reqs), len(want))
	}
	for i, w := range want {
		got := (*reqs)[i]
		if got.Method != w.method || got.Path != w.path {
			t.Errorf("request %d = %s %s, want %s %s", i, got.Method, got.Path, w.method, w.path)
		}
		if got.Auth != "Bearer tok-123" {
			t.Errorf("request %d Authorization = %q", i, got.Auth)
		}
	}
	if (*reqs)[2].Body["subject"] != "visit" {
		t.Errorf("PATCH body = %v", (*reqs)[2].Body)
	}
}

func TestClient_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"string detail", 403, `{"detail": "Modification of protected field 'tenant_id' is forbidden."}`, "Modification of protected field 'tenant_id' is forbidden."},
		{"validation list", 422, `{"detail": [{"msg": "field required"}, {"msg": "bad email"}]}`, "field required; bad email"},
		{"no detail", 500, `oops`, "Platform request failed"},
		{"not found", 404, `{"detail": "Resource not found or access denied."}`, "Resource not found or access denied."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			c := newClient(t, srv, nil)

			_, err := c.Update(context.Background(), "users", "u-1", store.Row{"name": "x"})
			var se *store.Error
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *store.Error", err)
			}
			if se.Kind != store.KindRejected || se.Status != tt.status {
				t.Errorf("kind/status = %v/%d", se.Kind, se.Status)
			}
			if got := se.UserDetail(); got != tt.wantDetail {
				t.Errorf("UserDetail() = %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	var called int32
	c := newClient(t, srv, func(cfg *Config) {
		cfg.OnUnauthorized = func() { atomic.AddInt32(&called, 1) }
	})

	_, err := c.List(context.Background(), "users")
	if !errors.Is(err, store.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if atomic.LoadInt32(&called) != 1 {
		t.Errorf("OnUnauthorized called %d times, want 1", called)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := newClient(t, srv, nil)
	srv.Close()

	_, err := c.List(context.Background(), "users")
	if !store.IsTransport(err) {
		t.Errorf("err = %v, want transport failure", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)
	c := newClient(t, srv, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := c.List(context.Background(), "users")
	if !store.IsTransport(err) {
		t.Errorf("err = %v, want transport failure", err)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	})
	c := newClient(t, srv, nil)

	if _, err := c.List(context.Background(), "users"); !store.IsTransport(err) {
		t.Errorf("err = %v, want transport failure", err)
	}
}

func TestClient_NoToken(t *testing.T) {
	srv, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	c := newClient(t, srv, func(cfg *Config) { cfg.Token = "" })

	if _, err := c.List(context.Background(), "users"); err != nil {
		t.Fatal(err)
	}
	if (*reqs)[0].Auth != "" {
		t.Errorf("Authorization = %q, want none", (*reqs)[0].Auth)
	}
}

func TestClient_RateLimitCancelled(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	c := newClient(t, srv, func(cfg *Config) {
		cfg.RequestsPerSecond = 0.001
		cfg.Burst = 1
	})

	if _, err := c.List(context.Background(), "users"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.List(ctx, "users"); !store.IsTransport(err) {
		t.Errorf("paced request err = %v, want transport failure", err)
	}
}

func TestClient_LargeIntegerIdentity(t *testing.T) {
	srv, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"id": 9007199254740993, "subject": "call"}]`)
		default:
			_, _ = io.WriteString(w, `{"id": 9007199254740993, "subject": "email"}`)
		}
	})
	c := newClient(t, srv, nil)
	ctx := context.Background()

	rows, err := c.List(ctx, "followups")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	id, ok := store.FormatIdentity(rows[0]["id"])
	if !ok || id != "9007199254740993" {
		t.Fatalf("identity = %q, want exact digits", id)
	}

	row, err := c.Update(ctx, "followups", id, store.Row{"subject": "email"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if row["id"] != "9007199254740993" {
		t.Errorf("updated id = %#v", row["id"])
	}
	last := (*reqs)[len(*reqs)-1]
	if last.Method != http.MethodPatch || last.Path != "/api/followups/9007199254740993" {
		t.Errorf("request = %s %s, want PATCH /api/followups/9007199254740993", last.Method, last.Path)
	}
}
