package grid

import "fmt"

// EditState is the state of the cell edit session.
type EditState int

const (
	Idle EditState = iota
	Editing
	Committing
)

func (s EditState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	default:
		return fmt.Sprintf("EditState(%d)", int(s))
	}
}

// EditSession is the single open inline edit of a Controller.
type EditSession struct {
	State    EditState `json:"state"`
	Table    string    `json:"table,omitempty"`
	Identity string    `json:"identity,omitempty"`
	Column   string    `json:"column,omitempty"`
	Original any       `json:"original,omitempty"`
	// Handle is the render adapter's reference to the edited cell.
	// The core never interprets it.
	Handle any  `json:"-"`
	Saving bool `json:"saving"`
}

// OriginalText is the text the editor starts with and the text a confirm
// must differ from to reach the store.
func (s EditSession) OriginalText() string {
	return FormatValue(s.Original)
}

// sameCell reports whether the session targets the given cell.
func (s EditSession) sameCell(identity, column string) bool {
	return s.Identity == identity && s.Column == column
}

// cellSession holds the state machine. The Controller serializes access.
type cellSession struct {
	cur EditSession
}

func (s *cellSession) state() EditState { return s.cur.State }

func (s *cellSession) snapshot() *EditSession {
	if s.cur.State == Idle {
		return nil
	}
	cp := s.cur
	return &cp
}

// start moves Idle to Editing. Starting the cell already being edited is a
// no-op; any other open session refuses.
func (s *cellSession) start(table, identity, column string, original, handle any) (changed bool, err error) {
	switch s.cur.State {
	case Committing:
		return false, ErrCommitInFlight
	case Editing:
		if s.cur.Table == table && s.cur.sameCell(identity, column) {
			return false, nil
		}
		return false, ErrEditInProgress
	}
	s.cur = EditSession{
		State:    Editing,
		Table:    table,
		Identity: identity,
		Column:   column,
		Original: original,
		Handle:   handle,
	}
	return true, nil
}

// commit moves Editing to Committing.
func (s *cellSession) commit() (EditSession, error) {
	switch s.cur.State {
	case Idle:
		return EditSession{}, ErrNoActiveEdit
	case Committing:
		return EditSession{}, ErrCommitInFlight
	}
	s.cur.State = Committing
	s.cur.Saving = true
	return s.cur, nil
}

// cancel moves Editing to Idle. It is refused once the commit is issued.
func (s *cellSession) cancel() (bool, error) {
	switch s.cur.State {
	case Idle:
		return false, nil
	case Committing:
		return false, ErrCommitInFlight
	}
	s.cur = EditSession{}
	return true, nil
}

// finish returns to Idle from any state.
func (s *cellSession) finish() {
	s.cur = EditSession{}
}
