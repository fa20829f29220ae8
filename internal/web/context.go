package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/logging"
	"github.com/JonMunkholm/gridconsole/internal/web/middleware"
)

type sessionCtxKey struct{}

// withSession resolves the browser's grid session from its cookie, creating
// one when the cookie is missing or stale, and puts it on the request
// context together with the audit actor and log session id.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *gridSession
		if c, err := r.Cookie(sessionCookie); err == nil {
			sess, _ = s.sessions.get(c.Value)
		}
		if sess == nil {
			sess = s.sessions.create()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.Security.SecureCookies,
				SameSite: http.SameSiteStrictMode,
			})
		}

		ctx := WithRequestMetadata(r.Context(), r)
		ctx = logging.WithSession(ctx, sess.id)
		ctx = context.WithValue(ctx, sessionCtxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session set by withSession.
func sessionFrom(r *http.Request) *gridSession {
	sess, _ := r.Context().Value(sessionCtxKey{}).(*gridSession)
	return sess
}

// endSession drops the browser's grid session and expires its cookie.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r); sess != nil {
		s.sessions.remove(sess.id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// WithRequestMetadata records the client address as the audit actor.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	actor := middleware.ClientIP(r)
	if ua := r.UserAgent(); ua != "" {
		actor += " (" + ua + ")"
	}
	return grid.WithActor(ctx, actor)
}
