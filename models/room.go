package models

import "time"

type Room struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`     // chat
	Privacy     string    `json:"privacy"`  // public, password
	Password    string    `json:"password"` // bcrypt hash, never returned to clients
	OwnerID     uint      `json:"owner_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RoomWithUser struct {
	Room
	OwnerName   string `json:"owner_name" gorm:"column:username"`
	OnlineUsers uint   `json:"online_users"`
}
