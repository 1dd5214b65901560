package handlers

import (
	"net/http"

	"ChatRelay/session"

	"github.com/labstack/echo/v4"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// PageViews bumps a per-session counter. First request creates the
// session, the counter resets when it expires or is destroyed.
func (h *SessionHandler) PageViews(c echo.Context) error {
	sess := session.FromContext(c)
	if sess == nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "session unavailable",
		})
	}

	views := sess.GetInt("page_views") + 1
	sess.SetInt("page_views", views)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"page_views": views,
		"new":        sess.IsNew(),
	})
}
