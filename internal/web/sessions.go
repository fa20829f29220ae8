package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridconsole/internal/grid"
)

const sessionCookie = "grid_session"

// gridSession is one browser's grid: its own Controller, so edits, the
// delete gate and the single-flight guard never leak between operators.
type gridSession struct {
	id   string
	ctrl *grid.Controller

	mu       sync.Mutex
	lastSeen time.Time
}

func (g *gridSession) touch(now time.Time) {
	g.mu.Lock()
	g.lastSeen = now
	g.mu.Unlock()
}

func (g *gridSession) idleSince() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeen
}

type sessionStore struct {
	newController func() *grid.Controller
	idle          time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*gridSession
}

func newSessionStore(newController func() *grid.Controller, idle time.Duration) *sessionStore {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &sessionStore{
		newController: newController,
		idle:          idle,
		now:           time.Now,
		sessions:      make(map[string]*gridSession),
	}
}

// get returns the live session for id.
func (s *sessionStore) get(id string) (*gridSession, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

func (s *sessionStore) create() *gridSession {
	sess := &gridSession{
		id:       uuid.NewString(),
		ctrl:     s.newController(),
		lastSeen: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

// remove forgets the session. Its Controller is left to finish any
// in-flight write on its own.
func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweep drops sessions idle for longer than the timeout. Sessions with a
// write in flight are kept until the next sweep.
func (s *sessionStore) sweep() int {
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) && !sess.ctrl.Busy() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *sessionStore) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				slog.Debug("grid sessions expired", "count", n)
			}
		}
	}
}

// closeAll waits for every session's in-flight write.
func (s *sessionStore) closeAll(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*gridSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range all {
		if err := sess.ctrl.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
