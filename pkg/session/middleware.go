package session

import (
	"context"
	"net/http"

	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/observability"
)

// HeaderName lets non-browser clients carry the session id explicitly.
const HeaderName = "X-Folio-Session"

type contextKey string

const sessionContextKey contextKey = "folio_session"

// FromContext returns the request's session, nil when none was established.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionContextKey).(*Session); ok {
		return sess
	}
	return nil
}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// Middleware resolves the request's session from the header or cookie,
// creating a fresh anonymous session on first contact. A stale cookie is
// replaced silently; an explicit header naming an unresolvable session is a
// client error.
func Middleware(store *Store, cookieName string, cookieSecure bool, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if headerID := r.Header.Get(HeaderName); headerID != "" {
				sess, err := store.Get(ctx, headerID)
				if err != nil {
					httputil.WriteBadRequest(w, "unresolvable session")
					return
				}
				serveWith(next, w, r, sess)
				return
			}

			if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
				if sess, err := store.Get(ctx, cookie.Value); err == nil {
					serveWith(next, w, r, sess)
					return
				}
			}

			sess, err := store.Create(ctx)
			if err != nil {
				logger.WithError(err).Error("failed to create session")
				httputil.WriteInternalError(w, err)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
			serveWith(next, w, r, sess)
		})
	}
}

func serveWith(next http.Handler, w http.ResponseWriter, r *http.Request, sess *Session) {
	ctx := WithSession(r.Context(), sess)
	if sess.Login != "" {
		ctx = observability.WithLogin(ctx, sess.Login)
	}
	next.ServeHTTP(w, r.WithContext(ctx))
}

// Require rejects requests that reach it without an established session.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			httputil.WriteBadRequest(w, "session required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
