package grid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridconsole/internal/logging"
	"github.com/JonMunkholm/gridconsole/internal/store"
)

// DefaultConfirmTTL is how long a delete confirmation stays valid.
const DefaultConfirmTTL = 2 * time.Minute

// State is the snapshot sent to subscribers after every transition.
type State struct {
	Table         string              `json:"table"`
	Display       []string            `json:"display"`
	Writable      []string            `json:"writable"`
	Identity      []string            `json:"identity"`
	Rows          []store.Row         `json:"rows"`
	Edit          *EditSession        `json:"edit,omitempty"`
	Busy          bool                `json:"busy"`
	PendingDelete *DeleteConfirmation `json:"pendingDelete,omitempty"`
}

// DeleteConfirmation is the gate between asking for a delete and issuing it.
type DeleteConfirmation struct {
	Token     uuid.UUID `json:"token"`
	Table     string    `json:"table"`
	Identity  string    `json:"identity"`
	Prompt    string    `json:"prompt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Confirmer asks the operator to approve a delete.
type Confirmer interface {
	Confirm(ctx context.Context, c DeleteConfirmation) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, c DeleteConfirmation) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, c DeleteConfirmation) (bool, error) {
	return f(ctx, c)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the base logger. By default the request-scoped logger
// from the operation's context is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics records operation metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithAuditRecorder replaces the default log-based audit recorder.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.audit = r
		}
	}
}

// WithConfirmTTL sets the delete confirmation lifetime.
func WithConfirmTTL(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.confirmTTL = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the data grid for one open table session. It owns the row
// cache, the cell edit session and the single-flight guard.
//
// Every row-level operation (cell commit, create/update, delete, table
// switch) takes the guard without waiting; a second operation started while
// one is pending fails with ErrBusy.
type Controller struct {
	registry   *Registry
	client     store.Client
	cache      *RowCache
	guard      *ActionGuard
	logger     *slog.Logger
	metrics    *Metrics
	audit      AuditRecorder
	confirmTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	session cellSession
	pending *DeleteConfirmation

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewController returns a Controller with no table selected.
func NewController(registry *Registry, client store.Client, opts ...Option) *Controller {
	c := &Controller{
		registry:   registry,
		client:     client,
		cache:      NewRowCache(registry, client),
		guard:      NewActionGuard(),
		confirmTTL: DefaultConfirmTTL,
		now:        time.Now,
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.audit == nil {
		c.audit = LogRecorder{Logger: c.logger}
	}
	return c
}

func (c *Controller) log(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return logging.FromContext(ctx).With("component", "grid")
}

// Registry returns the registry the Controller enforces.
func (c *Controller) Registry() *Registry { return c.registry }

// Busy reports whether a row-level operation is in flight.
func (c *Controller) Busy() bool { return c.guard.Busy() }

// Guard exposes the single-flight guard for monitoring and drain.
func (c *Controller) Guard() *ActionGuard { return c.guard }

// Subscribe registers fn to receive every state transition. fn is called
// synchronously and must not call back into the Controller's mutating
// methods. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	table := c.cache.Table()
	st := State{
		Table: table,
		Rows:  c.cache.Rows(),
		Busy:  c.guard.Busy(),
	}
	if schema, ok := c.registry.Lookup(table); ok {
		st.Display = schema.Display
		st.Writable = schema.EffectiveWritable()
		st.Identity = schema.Identity
	}

	c.mu.Lock()
	st.Edit = c.session.snapshot()
	if c.pending != nil {
		p := *c.pending
		st.PendingDelete = &p
	}
	c.mu.Unlock()
	return st
}

func (c *Controller) notify() {
	c.subMu.Lock()
	if len(c.subs) == 0 {
		c.subMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	st := c.Snapshot()
	for _, fn := range fns {
		fn(st)
	}
}

// begin takes the guard for op. The returned release must be deferred.
func (c *Controller) begin(op string) (func(), error) {
	if !c.guard.TryAcquire(op) {
		c.metrics.busy(op)
		return nil, ErrBusy
	}
	c.notify()
	return func() {
		c.guard.Release()
		c.notify()
	}, nil
}

// ---------------------------------------------------------------------------
// Cell edit session
// ---------------------------------------------------------------------------

// StartEdit opens an inline edit on one cell of the current table.
// handle is the render adapter's reference to the cell.
func (c *Controller) StartEdit(identity, column string, handle any) error {
	table := c.cache.Table()
	if table == "" {
		return ErrTableNotLoaded
	}
	schema, err := c.registry.SchemaFor(table)
	if err != nil {
		return err
	}
	if schema.IsProtected(column) {
		return &ProtectedColumnViolation{Table: table, Column: column}
	}
	if !schema.IsWritable(column) {
		return &ColumnNotWritableError{Table: table, Column: column}
	}
	if c.guard.Busy() {
		return ErrBusy
	}
	row, ok := c.cache.Find(identity)
	if !ok {
		return ErrRowNotFound
	}

	c.mu.Lock()
	changed, err := c.session.start(table, identity, column, row[column], handle)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		c.notify()
	}
	return nil
}

// ConfirmEdit commits raw for the open edit. Text equal to the original
// returns to Idle without contacting the store. The guard is taken in the
// same step that moves the session to Committing, so nothing else runs
// until the commit resolves. The session is Idle when ConfirmEdit returns
// unless the guard was busy, in which case the edit stays open.
func (c *Controller) ConfirmEdit(ctx context.Context, raw string) (err error) {
	c.mu.Lock()
	if c.session.state() == Editing && raw == c.session.cur.OriginalText() {
		c.session.finish()
		c.mu.Unlock()
		c.notify()
		return nil
	}
	if c.session.state() != Editing {
		_, err := c.session.commit()
		c.mu.Unlock()
		return err
	}
	if !c.guard.TryAcquire("confirm_edit") {
		c.mu.Unlock()
		c.metrics.busy("confirm_edit")
		return ErrBusy
	}
	sess, _ := c.session.commit()
	c.mu.Unlock()
	c.notify()

	defer func() { c.metrics.mutation("commit_cell", sess.Table, err) }()
	defer func() {
		c.mu.Lock()
		cur := c.session.cur
		if cur.State == Committing && cur.Table == sess.Table && cur.sameCell(sess.Identity, sess.Column) {
			c.session.finish()
		}
		c.mu.Unlock()
		c.guard.Release()
		c.notify()
	}()

	schema, err := c.registry.SchemaFor(sess.Table)
	if err != nil {
		return err
	}
	return c.commitCellLocked(ctx, schema, sess.Identity, sess.Column, raw)
}

// CancelEdit discards the open edit. It is a no-op when nothing is open
// and refused once the commit has been issued.
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	changed, err := c.session.cancel()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		c.notify()
	}
	return nil
}

// Edit returns the open edit session, or nil when Idle.
func (c *Controller) Edit() *EditSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.snapshot()
}

// ---------------------------------------------------------------------------
// Mutation coordinator
// ---------------------------------------------------------------------------

// CommitCell writes one cell of a cached row.
//
// Protected columns are refused before anything else that could reach the
// store. A value equal to the cached one succeeds without a remote call.
// Store failures are returned unchanged and leave the cache untouched.
func (c *Controller) CommitCell(ctx context.Context, table, identity, column, raw string) (err error) {
	defer func() { c.metrics.mutation("commit_cell", table, err) }()

	schema, err := c.registry.SchemaFor(table)
	if err != nil {
		return err
	}
	if schema.IsProtected(column) {
		c.refuseProtected(ctx, table, column, identity)
		return &ProtectedColumnViolation{Table: table, Column: column}
	}
	if !schema.IsWritable(column) {
		return &ColumnNotWritableError{Table: table, Column: column}
	}

	release, err := c.begin("commit_cell")
	if err != nil {
		return err
	}
	defer release()

	return c.commitCellLocked(ctx, schema, identity, column, raw)
}

// commitCellLocked checks the column rules again and writes the cell.
// Caller holds the guard.
func (c *Controller) commitCellLocked(ctx context.Context, schema TableSecuritySchema, identity, column, raw string) error {
	table := schema.Name
	if schema.IsProtected(column) {
		c.refuseProtected(ctx, table, column, identity)
		return &ProtectedColumnViolation{Table: table, Column: column}
	}
	if !schema.IsWritable(column) {
		return &ColumnNotWritableError{Table: table, Column: column}
	}
	if c.cache.Table() != table {
		return ErrTableNotLoaded
	}
	row, ok := c.cache.Find(identity)
	if !ok {
		return ErrRowNotFound
	}

	value := Coerce(raw)
	old := row[column]
	if valuesEqual(value, old) {
		return nil
	}

	fields := store.Row{column: value}
	start := c.now()
	_, err := c.client.Update(ctx, table, identity, fields)
	c.metrics.observe("update", table, start)
	if err != nil {
		c.log(ctx).Warn("cell update failed",
			"table", table, "identity", identity, "column", column, "error", err)
		return err
	}

	c.cache.ApplyLocalUpdate(identity, column, value)
	c.record(ctx, AuditEntry{
		Action:   ActionUpdate,
		Table:    table,
		RecordID: identity,
		Column:   column,
		OldValue: old,
		Payload:  fields,
	})
	return nil
}

// CreateOrUpdateRow submits a form. Protected and non-writable keys are
// dropped whatever the caller sent; the remaining values are coerced. An
// empty identity creates a row. The table is reloaded on success so
// server-assigned fields show up.
func (c *Controller) CreateOrUpdateRow(ctx context.Context, table, identity string, fields map[string]string) (row store.Row, err error) {
	op := "create"
	if identity != "" {
		op = "update"
	}
	defer func() { c.metrics.mutation(op, table, err) }()

	schema, err := c.registry.SchemaFor(table)
	if err != nil {
		return nil, err
	}

	payload := c.filterPayload(ctx, schema, fields)
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	release, err := c.begin(op)
	if err != nil {
		return nil, err
	}
	defer release()

	start := c.now()
	action := ActionCreate
	if identity != "" {
		action = ActionUpdate
		row, err = c.client.Update(ctx, table, identity, payload)
	} else {
		row, err = c.client.Create(ctx, table, payload)
	}
	c.metrics.observe(op, table, start)
	if err != nil {
		c.log(ctx).Warn("row "+op+" failed", "table", table, "identity", identity, "error", err)
		return nil, err
	}
	row = store.NormalizeRow(row.Clone())

	recordID := identity
	if recordID == "" {
		recordID, _ = schema.IdentityOf(row)
	}
	c.record(ctx, AuditEntry{Action: action, Table: table, RecordID: recordID, Payload: payload})

	if err := c.reloadIfCurrent(ctx, table); err != nil {
		return row, err
	}
	return row, nil
}

func (c *Controller) filterPayload(ctx context.Context, schema TableSecuritySchema, fields map[string]string) store.Row {
	payload := make(store.Row, len(fields))
	for col, raw := range fields {
		switch {
		case schema.IsProtected(col):
			c.refuseProtected(ctx, schema.Name, col, "")
		case !schema.IsWritable(col):
			c.log(ctx).Debug("dropping non-writable field", "table", schema.Name, "column", col)
		default:
			payload[col] = Coerce(raw)
		}
	}
	return payload
}

func (c *Controller) refuseProtected(ctx context.Context, table, column, identity string) {
	c.metrics.protectedViolation(table, column)
	c.log(ctx).Warn("protected column write refused",
		"table", table, "column", column, "identity", identity)
}

// RequestDelete opens the confirmation gate for deleting one row. Only one
// confirmation is pending at a time; a new request replaces the old one.
func (c *Controller) RequestDelete(table, identity string) (DeleteConfirmation, error) {
	if _, err := c.registry.SchemaFor(table); err != nil {
		return DeleteConfirmation{}, err
	}
	if identity == "" {
		return DeleteConfirmation{}, ErrRowNotFound
	}
	if c.cache.Table() == table {
		if _, ok := c.cache.Find(identity); !ok {
			return DeleteConfirmation{}, ErrRowNotFound
		}
	}
	if c.guard.Busy() {
		c.metrics.busy("delete")
		return DeleteConfirmation{}, ErrBusy
	}

	conf := DeleteConfirmation{
		Token:     uuid.New(),
		Table:     table,
		Identity:  identity,
		Prompt:    DeletePrompt(identity),
		ExpiresAt: c.now().Add(c.confirmTTL),
	}
	c.mu.Lock()
	c.pending = &conf
	c.mu.Unlock()
	c.notify()
	return conf, nil
}

// DeletePrompt is the warning shown before a delete is confirmed.
func DeletePrompt(identity string) string {
	return fmt.Sprintf("PERMANENT DELETION WARNING\n\n"+
		"This will permanently remove record %s from the production shard. "+
		"This action cannot be undone.\n\nAre you absolutely sure?", identity)
}

// ConfirmDelete issues the delete approved by token. Tokens are single use.
// The row is not removed locally before the store confirms; the table is
// reloaded afterwards.
func (c *Controller) ConfirmDelete(ctx context.Context, token uuid.UUID) (err error) {
	table := ""
	defer func() { c.metrics.mutation("delete", table, err) }()

	release, err := c.begin("delete")
	if err != nil {
		return err
	}
	defer release()

	c.mu.Lock()
	conf := c.pending
	if conf == nil || conf.Token != token {
		c.mu.Unlock()
		return ErrConfirmationExpired
	}
	c.pending = nil
	c.mu.Unlock()

	table = conf.Table
	if c.now().After(conf.ExpiresAt) {
		return ErrConfirmationExpired
	}

	start := c.now()
	err = c.client.Delete(ctx, conf.Table, conf.Identity)
	c.metrics.observe("delete", conf.Table, start)
	if err != nil {
		c.log(ctx).Warn("row delete failed", "table", conf.Table, "identity", conf.Identity, "error", err)
		return err
	}

	c.record(ctx, AuditEntry{Action: ActionDelete, Table: conf.Table, RecordID: conf.Identity})
	return c.reloadIfCurrent(ctx, conf.Table)
}

// CancelDelete closes the confirmation gate without deleting.
func (c *Controller) CancelDelete(token uuid.UUID) error {
	c.mu.Lock()
	if c.pending == nil || c.pending.Token != token {
		c.mu.Unlock()
		return ErrConfirmationExpired
	}
	c.pending = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// DeleteRow runs the whole delete gate for adapters that can prompt
// synchronously. A nil confirmer or a declined prompt deletes nothing.
func (c *Controller) DeleteRow(ctx context.Context, table, identity string, confirm Confirmer) error {
	conf, err := c.RequestDelete(table, identity)
	if err != nil {
		return err
	}
	if confirm == nil {
		_ = c.CancelDelete(conf.Token)
		return ErrConfirmationRequired
	}
	ok, err := confirm.Confirm(ctx, conf)
	if err != nil || !ok {
		_ = c.CancelDelete(conf.Token)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConfirmationRequired, err)
		}
		return ErrConfirmationRequired
	}
	return c.ConfirmDelete(ctx, conf.Token)
}

// SwitchTable selects table and loads its rows. Any open edit on the old
// table is discarded. A failed load leaves the cache empty.
func (c *Controller) SwitchTable(ctx context.Context, table string) (err error) {
	defer func() { c.metrics.mutation("switch_table", table, err) }()

	if _, err := c.registry.SchemaFor(table); err != nil {
		return err
	}

	release, err := c.begin("switch_table")
	if err != nil {
		return err
	}
	defer release()

	c.mu.Lock()
	c.session.finish()
	c.pending = nil
	c.mu.Unlock()

	return c.load(ctx, table)
}

// Refresh reloads the current table.
func (c *Controller) Refresh(ctx context.Context) error {
	table := c.cache.Table()
	if table == "" {
		return ErrTableNotLoaded
	}
	release, err := c.begin("refresh")
	if err != nil {
		return err
	}
	defer release()
	return c.load(ctx, table)
}

func (c *Controller) load(ctx context.Context, table string) error {
	start := c.now()
	err := c.cache.Load(ctx, table)
	c.metrics.observe("list", table, start)
	if err != nil {
		c.log(ctx).Warn("table load failed", "table", table, "error", err)
		return err
	}
	c.log(ctx).Debug("table loaded", "table", table, "rows", c.cache.Len())
	return nil
}

// reloadIfCurrent refreshes the cache after a confirmed write to the
// selected table. Caller holds the guard.
func (c *Controller) reloadIfCurrent(ctx context.Context, table string) error {
	if c.cache.Table() != table {
		return nil
	}
	if err := c.load(ctx, table); err != nil {
		return &RefreshError{Table: table, Err: err}
	}
	return nil
}

func (c *Controller) record(ctx context.Context, e AuditEntry) {
	e.Severity = SeverityOf(e.Action)
	e.CreatedAt = c.now().UTC()
	if e.Actor == "" {
		e.Actor = ActorFromContext(ctx)
	}
	if err := c.audit.RecordAudit(ctx, e); err != nil {
		c.log(ctx).Error("audit record failed", "action", e.Action, "table", e.Table, "error", err)
	}
}

// Close waits for any in-flight operation to finish.
func (c *Controller) Close(ctx context.Context) error {
	return c.guard.WaitForDrain(ctx)
}
