package grid

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

func TestStartEdit_Guards(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		column   string
		wantErr  error
		wantKind Kind
	}{
		{"writable column", "u-1", "name", nil, KindUnknown},
		{"protected column", "u-1", "user_id", nil, KindProtectedColumn},
		{"column in neither set", "u-1", "email", nil, KindNotWritable},
		{"unknown row", "nobody", "name", ErrRowNotFound, KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t)
			err := c.StartEdit(tt.identity, tt.column, nil)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(%v) = %v, want %v", err, got, tt.wantKind)
			}
			if err != nil && c.Edit() != nil {
				t.Error("refused start left an edit open")
			}
		})
	}
}

func TestStartEdit_NoTable(t *testing.T) {
	c := NewController(testRegistry(t), newFakeClient(nil))
	if err := c.StartEdit("u-1", "name", nil); !errors.Is(err, ErrTableNotLoaded) {
		t.Errorf("err = %v, want ErrTableNotLoaded", err)
	}
}

func TestStartEdit_SingleFocus(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.StartEdit("u-1", "name", "h1"); err != nil {
		t.Fatal(err)
	}
	// Same cell again is ignored.
	if err := c.StartEdit("u-1", "name", "h2"); err != nil {
		t.Errorf("re-entrant start on same cell err = %v, want nil", err)
	}
	if e := c.Edit(); e == nil || e.Handle != "h1" {
		t.Errorf("edit = %+v, want original handle kept", e)
	}
	if err := c.StartEdit("u-2", "role", nil); !errors.Is(err, ErrEditInProgress) {
		t.Errorf("second cell err = %v, want ErrEditInProgress", err)
	}
}

func TestEditSession_ConfirmCommits(t *testing.T) {
	c, client := newTestController(t)

	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}
	e := c.Edit()
	if e.State != Editing || e.Original != "Ann" || e.OriginalText() != "Ann" {
		t.Fatalf("edit = %+v", e)
	}

	if err := c.ConfirmEdit(context.Background(), "Anne"); err != nil {
		t.Fatalf("ConfirmEdit: %v", err)
	}
	if c.Edit() != nil {
		t.Error("session not Idle after commit")
	}
	if len(client.writes()) != 1 {
		t.Errorf("writes = %+v, want one update", client.writes())
	}
	if v, _ := c.cache.Value("u-1", "name"); v != "Anne" {
		t.Errorf("cached = %#v, want Anne", v)
	}
}

func TestEditSession_ConfirmUnchangedText(t *testing.T) {
	c, client := newTestController(t)

	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.ConfirmEdit(context.Background(), "Ann"); err != nil {
		t.Fatalf("ConfirmEdit: %v", err)
	}
	if c.Edit() != nil {
		t.Error("session not Idle after no-op confirm")
	}
	if len(client.Calls()) != 0 {
		t.Error("store called for unchanged text")
	}
}

func TestEditSession_FailureReturnsToIdle(t *testing.T) {
	c, client := newTestController(t)
	client.updateErr = store.Rejected("update", "users", 403, "Forbidden")

	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}
	err := c.ConfirmEdit(context.Background(), "Mallory")
	if KindOf(err) != KindRemoteRejection {
		t.Fatalf("err = %v, want remote rejection", err)
	}
	if c.Edit() != nil {
		t.Error("session not Idle after failed commit")
	}
	if v, _ := c.cache.Value("u-1", "name"); v != "Ann" {
		t.Errorf("cached = %#v, want Ann", v)
	}
}

func TestEditSession_Cancel(t *testing.T) {
	c, client := newTestController(t)

	if err := c.CancelEdit(); err != nil {
		t.Errorf("CancelEdit while Idle err = %v", err)
	}
	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.CancelEdit(); err != nil {
		t.Fatalf("CancelEdit: %v", err)
	}
	if c.Edit() != nil {
		t.Error("session open after cancel")
	}
	if len(client.Calls()) != 0 {
		t.Error("store called on cancel")
	}
	if err := c.ConfirmEdit(context.Background(), "x"); !errors.Is(err, ErrNoActiveEdit) {
		t.Errorf("ConfirmEdit after cancel err = %v, want ErrNoActiveEdit", err)
	}
}

func TestEditSession_CommittingRefusesCancelAndStart(t *testing.T) {
	c, client := newTestController(t)
	entered, release := client.blockWrites()
	defer release()

	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- c.ConfirmEdit(context.Background(), "Slow") }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("commit never reached the store")
	}

	if e := c.Edit(); e == nil || e.State != Committing || !e.Saving {
		t.Errorf("edit = %+v, want Committing and saving", e)
	}
	if err := c.CancelEdit(); !errors.Is(err, ErrCommitInFlight) {
		t.Errorf("CancelEdit while committing err = %v, want ErrCommitInFlight", err)
	}
	if err := c.StartEdit("u-2", "name", nil); err == nil {
		t.Error("StartEdit while committing should be refused")
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("ConfirmEdit: %v", err)
	}
	if c.Edit() != nil {
		t.Error("session not Idle after commit resolved")
	}
}

func TestEditSession_CommittingHoldsGuard(t *testing.T) {
	c, client := newTestController(t)
	ctx := context.Background()

	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}

	// Pause the confirm right after it reports Committing, before the write.
	committing := make(chan struct{})
	resume := make(chan struct{})
	var paused atomic.Bool
	unsubscribe := c.Subscribe(func(st State) {
		if st.Edit != nil && st.Edit.State == Committing {
			if paused.CompareAndSwap(false, true) {
				close(committing)
				<-resume
			}
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- c.ConfirmEdit(ctx, "Anne") }()

	select {
	case <-committing:
	case <-time.After(2 * time.Second):
		close(resume)
		t.Fatal("confirm never reached Committing")
	}

	if err := c.SwitchTable(ctx, "followups"); !errors.Is(err, ErrBusy) {
		t.Errorf("SwitchTable while committing err = %v, want ErrBusy", err)
	}
	if err := c.Refresh(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("Refresh while committing err = %v, want ErrBusy", err)
	}
	if err := c.StartEdit("u-1", "role", nil); err == nil {
		t.Error("StartEdit while committing should be refused")
	}
	if err := c.CancelEdit(); !errors.Is(err, ErrCommitInFlight) {
		t.Errorf("CancelEdit while committing err = %v, want ErrCommitInFlight", err)
	}
	if err := c.ConfirmEdit(ctx, "Other"); !errors.Is(err, ErrCommitInFlight) {
		t.Errorf("second ConfirmEdit err = %v, want ErrCommitInFlight", err)
	}

	close(resume)
	if err := <-done; err != nil {
		t.Fatalf("ConfirmEdit: %v", err)
	}

	writes := client.writes()
	if len(writes) != 1 {
		t.Fatalf("writes = %+v, want exactly one", writes)
	}
	if w := writes[0]; w.Table != "users" || w.Identity != "u-1" || w.Fields["name"] != "Anne" {
		t.Errorf("write = %+v, want users/u-1 name=Anne", w)
	}
	if c.Edit() != nil {
		t.Error("session not Idle after commit resolved")
	}
	if c.Busy() {
		t.Error("guard still held after commit resolved")
	}
	if err := c.StartEdit("u-1", "role", nil); err != nil {
		t.Errorf("StartEdit after commit: %v", err)
	}
}

func TestEditSession_ConfirmWhileBusyKeepsEdit(t *testing.T) {
	c, client := newTestController(t)

	if err := c.StartEdit("u-1", "name", nil); err != nil {
		t.Fatal(err)
	}
	c.Guard().TryAcquire("other")
	err := c.ConfirmEdit(context.Background(), "Anne")
	c.Guard().Release()

	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if e := c.Edit(); e == nil || e.State != Editing {
		t.Errorf("edit = %+v, want still Editing", e)
	}
	if len(client.writes()) != 0 {
		t.Error("store written while guard was busy")
	}
}

func TestEditState_String(t *testing.T) {
	for state, want := range map[EditState]string{Idle: "idle", Editing: "editing", Committing: "committing"} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
