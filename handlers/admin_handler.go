package handlers

import (
	"net/http"

	"ChatRelay/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// Stats reports store-wide totals. Admin only.
func (h *AdminHandler) Stats(c echo.Context) error {
	var users, rooms, messages, customers int64

	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.User{}, &users},
		{&models.Room{}, &rooms},
		{&models.Message{}, &messages},
		{&models.Customer{}, &customers},
	}
	for _, c2 := range counts {
		if err := h.db.Model(c2.model).Count(c2.dest).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to collect stats",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]int64{
		"users":     users,
		"rooms":     rooms,
		"messages":  messages,
		"customers": customers,
	})
}
