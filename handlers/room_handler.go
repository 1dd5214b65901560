package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"ChatRelay/models"
	"ChatRelay/services"

	"github.com/labstack/echo/v4"
)

type RoomHandler struct {
	roomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	var dto services.CreateRoomDTO
	if err := c.Bind(&dto); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := c.Validate(&dto); err != nil {
		return err
	}

	user := c.Get("user").(*models.User)

	room, err := h.roomService.CreateRoom(dto, user)
	if err != nil {
		if errors.Is(err, services.ErrPasswordRequired) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "password required for password rooms",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create room",
		})
	}

	room.Password = ""
	return c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) ListRooms(c echo.Context) error {
	rooms, err := h.roomService.ListRooms(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list rooms",
		})
	}
	return c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoom(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid room id",
		})
	}

	room, err := h.roomService.GetRoomByID(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "room not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch room",
		})
	}

	return c.JSON(http.StatusOK, room)
}

// JoinRoom authorizes entry before the client opens the WebSocket.
func (h *RoomHandler) JoinRoom(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid room id",
		})
	}

	var body struct {
		Password string `json:"password"`
	}
	c.Bind(&body)

	room, err := h.roomService.AuthorizeRoomEntry(uint(id), body.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRoomNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "room not found",
			})
		case errors.Is(err, services.ErrPasswordRequired):
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "password required",
			})
		case errors.Is(err, services.ErrIncorrectPassword):
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "incorrect password",
			})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to join room",
			})
		}
	}

	room.Password = ""
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid room id",
		})
	}

	user := c.Get("user").(*models.User)

	if err := h.roomService.DeleteRoom(uint(id), user); err != nil {
		switch {
		case errors.Is(err, services.ErrRoomNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "room not found",
			})
		case errors.Is(err, services.ErrAccessDenied):
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "only the owner can delete a room",
			})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to delete room",
			})
		}
	}

	return c.NoContent(http.StatusNoContent)
}
