package relay

import (
	"encoding/json"
	"time"
)

// Frame is the wire envelope for one chat event on the broker topic.
// Origin carries the publishing instance id so a consumer can skip frames
// it already delivered locally.
type Frame struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	RoomID    string    `json:"room_id"`
	Type      string    `json:"type"` // text, system
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	UserColor string    `json:"user_color,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
