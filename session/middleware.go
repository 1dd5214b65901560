package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey is where the middleware parks the request session.
const ContextKey = "http_session"

// FromContext returns the request session. The middleware always sets
// one, so handlers behind it may rely on a non-nil result.
func FromContext(c echo.Context) *Session {
	sess, _ := c.Get(ContextKey).(*Session)
	return sess
}

// Middleware gives every request a session: loaded from the store when
// the cookie names a live record, freshly created otherwise. After the
// handler runs, mutated sessions are saved, untouched ones get their TTL
// refreshed, and destroyed ones are removed along with the cookie.
func (s *Store) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var sess *Session
			if cookie, err := c.Cookie(s.cookieName); err == nil {
				sess, err = s.Load(ctx, cookie.Value)
				if err != nil && !errors.Is(err, ErrNotFound) {
					c.Logger().Errorf("session load failed: %v", err)
				}
			}
			if sess == nil {
				sess = s.New()
			}
			c.Set(ContextKey, sess)

			err := next(c)

			switch {
			case sess.destroyed:
				if dErr := s.Destroy(ctx, sess); dErr != nil {
					c.Logger().Errorf("session destroy failed: %v", dErr)
				}
				c.SetCookie(s.expiredCookie())
			case sess.dirty || sess.fresh:
				wasFresh := sess.fresh
				if sErr := s.Save(ctx, sess); sErr != nil {
					c.Logger().Errorf("session save failed: %v", sErr)
				} else if wasFresh {
					c.SetCookie(s.cookie(sess.ID))
				}
			default:
				if tErr := s.Touch(ctx, sess); tErr != nil {
					c.Logger().Errorf("session touch failed: %v", tErr)
				}
			}

			return err
		}
	}
}

// The cookie carries no Max-Age: the sliding Redis TTL decides when the
// session dies, a fixed-age cookie would cut active users off at the
// first issue time.
func (s *Store) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Store) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}
