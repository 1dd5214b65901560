package services

import (
	"context"
	"errors"
	"strconv"

	"ChatRelay/models"
	"ChatRelay/redis"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrPasswordRequired  = errors.New("password required")
	ErrIncorrectPassword = errors.New("incorrect password")
)

type CreateRoomDTO struct {
	Name        string `json:"name"        validate:"required,min=3,max=50"`
	Description string `json:"description" validate:"max=255"`
	Privacy     string `json:"privacy"     validate:"required,oneof=public password"`
	Password    string `json:"password,omitempty" validate:"omitempty,required_if=Privacy password,min=6"`
}

type RoomService struct {
	db    *gorm.DB
	redis *redis.RedisClient
}

func NewRoomService(db *gorm.DB, redisClient *redis.RedisClient) *RoomService {
	return &RoomService{db: db, redis: redisClient}
}

func (s *RoomService) CreateRoom(input CreateRoomDTO, user *models.User) (*models.Room, error) {
	var hashedPassword string
	if input.Privacy == "password" {
		if input.Password == "" {
			return nil, ErrPasswordRequired
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashedPassword = string(hash)
	}
	room := models.Room{
		Name:        input.Name,
		Description: input.Description,
		Type:        "chat",
		Privacy:     input.Privacy,
		Password:    hashedPassword,
		OwnerID:     user.ID,
		IsActive:    true,
	}
	if err := s.db.Create(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms joins the owner name in and decorates each room with its
// live presence count from Redis.
func (s *RoomService) ListRooms(ctx context.Context) ([]models.RoomWithUser, error) {
	var results []models.RoomWithUser
	err := s.db.Table("rooms").
		Select("rooms.*, users.username").
		Joins("LEFT JOIN users ON users.id = rooms.owner_id").
		Order("rooms.created_at DESC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(results); i++ {
		results[i].Password = ""
		users, redisErr := s.redis.GetOnlineUsers(ctx, strconv.FormatUint(uint64(results[i].ID), 10))
		if redisErr != nil {
			continue
		}
		results[i].OnlineUsers = uint(len(users))
	}
	return results, nil
}

// AuthorizeRoomEntry checks the room exists and, for password rooms,
// verifies the supplied password against the stored hash.
func (s *RoomService) AuthorizeRoomEntry(roomID uint, password string) (*models.Room, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if room.Privacy == "password" {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(room.Password), []byte(password)); err != nil {
			return nil, ErrIncorrectPassword
		}
	}
	return &room, nil
}

// DeleteRoom removes a room after checking ownership. The lookup and the
// delete run in one transaction.
func (s *RoomService) DeleteRoom(roomID uint, user *models.User) error {
	var room models.Room
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		if room.OwnerID != user.ID {
			return ErrAccessDenied
		}

		return tx.Delete(&room).Error
	})
}

func (s *RoomService) GetRoomByID(id uint) (models.RoomWithUser, error) {
	var result models.RoomWithUser
	err := s.db.Table("rooms").
		Select("rooms.*, users.username").
		Joins("LEFT JOIN users ON users.id = rooms.owner_id").
		Where("rooms.id = ?", id).
		Scan(&result).Error
	if err == nil && result.ID == 0 {
		return result, ErrRoomNotFound
	}
	result.Password = ""
	return result, err
}
