package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"ChatRelay/metrics"
	"ChatRelay/models"
	"ChatRelay/relay"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const maxMessageLength = 4096

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type BroadcastMessage struct {
	Data      map[string]interface{} // frame to broadcast
	ExceptIDs map[string]bool        // client ids to skip
}

// UserInfo is the presence record stored per room in Redis.
type UserInfo struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// ChatClient is one WebSocket connection: the conn, who is behind it,
// and a buffered send queue drained by its write pump.
type ChatClient struct {
	ID       string
	UserID   uint
	Username string
	Color    string
	Conn     *websocket.Conn
	Room     *ChatRoom
	Send     chan map[string]interface{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// ChatRoom owns the local subscribers of one destination and their
// message fan-out.
type ChatRoom struct {
	ID         string
	Clients    map[string]*ChatClient
	mu         sync.RWMutex
	Broadcast  chan *BroadcastMessage
	Register   chan *ChatClient
	Unregister chan *ChatClient
	ctx        context.Context
	cancel     context.CancelFunc
	redis      *redis.Client
	manager    *ChatRoomManager
}

type ChatRoomManager struct {
	rooms map[string]*ChatRoom
	mu    sync.RWMutex
	redis *redis.Client
}

func NewChatRoomManager(redisClient *redis.Client) *ChatRoomManager {
	return &ChatRoomManager{
		rooms: make(map[string]*ChatRoom),
		redis: redisClient,
	}
}

func (m *ChatRoomManager) GetOrCreateRoom(roomID string) *ChatRoom {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, exists := m.rooms[roomID]; exists {
		return room
	}

	ctx, cancel := context.WithCancel(context.Background())
	room := &ChatRoom{
		ID:         roomID,
		Clients:    make(map[string]*ChatClient),
		Broadcast:  make(chan *BroadcastMessage, 256),
		Register:   make(chan *ChatClient, 16),
		Unregister: make(chan *ChatClient, 16),
		ctx:        ctx,
		cancel:     cancel,
		redis:      m.redis,
		manager:    m,
	}
	m.rooms[roomID] = room

	go room.run()

	return room
}

// Lookup returns the room only if this instance already has subscribers
// in it. Relayed traffic for rooms nobody here joined is not interesting.
func (m *ChatRoomManager) Lookup(roomID string) (*ChatRoom, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// release drops an empty room so idle rooms do not pin their dispatch
// goroutine forever. Returns false when a client slipped in again.
func (m *ChatRoomManager) release(room *ChatRoom) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	room.mu.RLock()
	empty := len(room.Clients) == 0
	room.mu.RUnlock()
	if !empty || len(room.Register) > 0 {
		return false
	}

	delete(m.rooms, room.ID)
	room.cancel()
	return true
}

// run is the per-room dispatch loop.
func (room *ChatRoom) run() {
	for {
		select {
		case <-room.ctx.Done():
			return

		case client := <-room.Register:
			room.mu.Lock()
			room.Clients[client.ID] = client
			room.mu.Unlock()

			room.addUserToRedis(client)

		case client := <-room.Unregister:
			room.mu.Lock()
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Send)
			}
			empty := len(room.Clients) == 0
			room.mu.Unlock()

			room.removeUserFromRedis(client)

			if empty && room.manager.release(room) {
				return
			}

		case message := <-room.Broadcast:
			room.mu.RLock()
			clients := make([]*ChatClient, 0, len(room.Clients))
			for _, client := range room.Clients {
				clients = append(clients, client)
			}
			room.mu.RUnlock()

			for _, client := range clients {
				if message.ExceptIDs != nil && message.ExceptIDs[client.ID] {
					continue
				}

				select {
				case client.Send <- message.Data:
				default:
					log.Printf("Client %s send buffer full, disconnecting", client.ID)
					room.Unregister <- client
				}
			}
		}
	}
}

func (room *ChatRoom) presenceKey() string {
	return fmt.Sprintf("chat:room:%s:online_users", room.ID)
}

func (room *ChatRoom) addUserToRedis(client *ChatClient) {
	ctx := context.Background()

	userInfo := UserInfo{
		UserID:   client.UserID,
		Username: client.Username,
		Color:    client.Color,
	}

	data, err := json.Marshal(userInfo)
	if err != nil {
		log.Printf("Failed to marshal user info: %v", err)
		return
	}

	// Hash per room, field = user id, value = user info JSON
	field := fmt.Sprintf("%d", client.UserID)
	if err := room.redis.HSet(ctx, room.presenceKey(), field, data).Err(); err != nil {
		log.Printf("Failed to add user to Redis: %v", err)
		return
	}

	room.redis.Expire(ctx, room.presenceKey(), 24*time.Hour)
}

func (room *ChatRoom) removeUserFromRedis(client *ChatClient) {
	ctx := context.Background()

	// The same user may hold several tabs, drop the presence entry only
	// with the last connection
	room.mu.RLock()
	hasOtherConnection := false
	for _, c := range room.Clients {
		if c.UserID == client.UserID && c.ID != client.ID {
			hasOtherConnection = true
			break
		}
	}
	room.mu.RUnlock()

	if !hasOtherConnection {
		field := fmt.Sprintf("%d", client.UserID)
		if err := room.redis.HDel(ctx, room.presenceKey(), field).Err(); err != nil {
			log.Printf("Failed to remove user from Redis: %v", err)
		}
	}
}

func (room *ChatRoom) GetOnlineUsersFromRedis() ([]UserInfo, error) {
	ctx := context.Background()

	result, err := room.redis.HGetAll(ctx, room.presenceKey()).Result()
	if err != nil {
		return nil, err
	}

	users := make([]UserInfo, 0, len(result))
	for _, data := range result {
		var userInfo UserInfo
		if err := json.Unmarshal([]byte(data), &userInfo); err != nil {
			log.Printf("Failed to unmarshal user info: %v", err)
			continue
		}
		users = append(users, userInfo)
	}

	return users, nil
}

// FramePublisher hands a frame to the broker relay.
type FramePublisher interface {
	Publish(frame relay.Frame) error
}

type ChatWebSocketHandler struct {
	db          *gorm.DB
	redis       *redis.Client
	roomManager *ChatRoomManager
	publisher   FramePublisher // nil without a broker
	instanceID  string
	dbQueue     chan *models.Message
	dbWorkers   int
}

func NewChatWebSocketHandler(db *gorm.DB, redisClient *redis.Client, publisher FramePublisher, instanceID string) *ChatWebSocketHandler {
	h := &ChatWebSocketHandler{
		db:          db,
		redis:       redisClient,
		roomManager: NewChatRoomManager(redisClient),
		publisher:   publisher,
		instanceID:  instanceID,
		dbQueue:     make(chan *models.Message, 1000),
		dbWorkers:   4,
	}

	for i := 0; i < h.dbWorkers; i++ {
		go h.dbWorker()
	}

	return h
}

func (h *ChatWebSocketHandler) dbWorker() {
	for message := range h.dbQueue {
		if err := h.db.Create(message).Error; err != nil {
			log.Printf("Failed to save message: %v", err)
		}
	}
}

// HandleWebSocket is the connect operation: upgrade, join the room, send
// the init frame, then pump until the peer goes away.
func (h *ChatWebSocketHandler) HandleWebSocket(c echo.Context) error {
	roomID := c.Param("roomId")
	user := c.Get("user").(*models.User)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	metrics.ActiveConnections.Inc()

	ctx, cancel := context.WithCancel(context.Background())
	client := &ChatClient{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		Username: user.Username,
		Color:    getUserColor(user.ID),
		Conn:     ws,
		Send:     make(chan map[string]interface{}, 256),
		ctx:      ctx,
		cancel:   cancel,
	}

	room := h.roomManager.GetOrCreateRoom(roomID)
	client.Room = room

	room.Register <- client

	h.sendInitData(client, room)

	h.broadcastUserJoined(room, client)

	h.sendSystemMessage(room, client, "joined")

	go h.writePump(client)

	// the handler goroutine itself reads
	h.readPump(client)

	return nil
}

func (h *ChatWebSocketHandler) readPump(client *ChatClient) {
	defer func() {
		client.cancel()
		client.Room.Unregister <- client
		client.Conn.Close()
		metrics.ActiveConnections.Dec()

		h.broadcastUserLeft(client.Room, client)

		h.sendSystemMessage(client.Room, client, "left")
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg map[string]interface{}
		err := client.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, msg)
	}
}

func (h *ChatWebSocketHandler) writePump(client *ChatClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			return

		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(message); err != nil {
				log.Printf("WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ChatWebSocketHandler) sendInitData(client *ChatClient, room *ChatRoom) {
	users, err := room.GetOnlineUsersFromRedis()
	if err != nil {
		log.Printf("Failed to get online users from Redis: %v", err)
		users = []UserInfo{}
	}

	initMsg := map[string]interface{}{
		"type": "init",
		"payload": map[string]interface{}{
			"users": users,
		},
	}

	client.Send <- initMsg
}

func (h *ChatWebSocketHandler) sendSystemMessage(room *ChatRoom, client *ChatClient, action string) {
	var content string
	if action == "joined" {
		content = client.Username + " joined the room"
	} else if action == "left" {
		content = client.Username + " left the room"
	}
	systemMsg := map[string]interface{}{
		"type": "message",
		"payload": map[string]interface{}{
			"id":         uuid.New().String(),
			"room_id":    room.ID,
			"type":       "system",
			"content":    content,
			"created_at": time.Now(),
		},
	}

	room.Broadcast <- &BroadcastMessage{
		Data: systemMsg,
	}
}

func (h *ChatWebSocketHandler) handleMessage(client *ChatClient, msg map[string]interface{}) {
	msgType, ok := msg["type"].(string)
	if !ok {
		return
	}

	payload, _ := msg["payload"].(map[string]interface{})

	switch msgType {
	case "message":
		h.handleChatMessage(client, payload)
	case "typing":
		h.handleTyping(client, payload)
	}
}

// handleChatMessage is the sendMessage operation: persist asynchronously,
// publish to the broker so other instances see it, broadcast locally.
func (h *ChatWebSocketHandler) handleChatMessage(client *ChatClient, payload map[string]interface{}) {
	content, ok := payload["content"].(string)
	if !ok || content == "" || len(content) > maxMessageLength {
		return
	}

	now := time.Now()
	message := models.Message{
		RoomID:    client.Room.ID,
		UserID:    client.UserID,
		Content:   content,
		Type:      "text",
		CreatedAt: now,
	}

	select {
	case h.dbQueue <- &message:
	default:
		log.Println("Database queue full, dropping message")
		metrics.MessagesDropped.Inc()
	}

	frame := relay.Frame{
		ID:        uuid.New().String(),
		Origin:    h.instanceID,
		RoomID:    client.Room.ID,
		Type:      "text",
		UserID:    client.UserID,
		Username:  client.Username,
		UserColor: client.Color,
		Content:   content,
		CreatedAt: now,
	}

	// A broker outage degrades to local-only delivery
	if h.publisher != nil {
		if err := h.publisher.Publish(frame); err != nil {
			log.Printf("Failed to relay frame: %v", err)
			metrics.PublishFailures.Inc()
		} else {
			metrics.FramesPublished.Inc()
		}
	}

	client.Room.Broadcast <- &BroadcastMessage{
		Data: frameToBroadcast(frame),
	}
}

// HandleFrame implements relay.FrameHandler: frames coming back from the
// broker are delivered to local subscribers, except our own, which were
// already broadcast at send time.
func (h *ChatWebSocketHandler) HandleFrame(ctx context.Context, frame relay.Frame) error {
	if frame.Origin == h.instanceID {
		return nil
	}

	room, ok := h.roomManager.Lookup(frame.RoomID)
	if !ok {
		return nil
	}

	select {
	case room.Broadcast <- &BroadcastMessage{Data: frameToBroadcast(frame)}:
		metrics.FramesDelivered.Inc()
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func frameToBroadcast(frame relay.Frame) map[string]interface{} {
	return map[string]interface{}{
		"type": "message",
		"payload": map[string]interface{}{
			"id":         frame.ID,
			"room_id":    frame.RoomID,
			"user_id":    frame.UserID,
			"username":   frame.Username,
			"user_color": frame.UserColor,
			"content":    frame.Content,
			"type":       frame.Type,
			"created_at": frame.CreatedAt,
		},
	}
}

// Typing indicators stay local: they are transient and not worth broker
// round-trips.
func (h *ChatWebSocketHandler) handleTyping(client *ChatClient, payload map[string]interface{}) {
	isTyping, ok := payload["is_typing"].(bool)
	if !ok {
		return
	}

	typingMsg := map[string]interface{}{
		"type": "typing",
		"payload": map[string]interface{}{
			"user_id":   client.UserID,
			"username":  client.Username,
			"is_typing": isTyping,
		},
	}

	client.Room.Broadcast <- &BroadcastMessage{
		Data:      typingMsg,
		ExceptIDs: map[string]bool{client.ID: true},
	}
}

func (h *ChatWebSocketHandler) broadcastUserJoined(room *ChatRoom, client *ChatClient) {
	msg := map[string]interface{}{
		"type": "user_joined",
		"payload": map[string]interface{}{
			"user_id":  client.UserID,
			"username": client.Username,
			"color":    client.Color,
		},
	}

	room.Broadcast <- &BroadcastMessage{
		Data:      msg,
		ExceptIDs: map[string]bool{client.ID: true},
	}
}

func (h *ChatWebSocketHandler) broadcastUserLeft(room *ChatRoom, client *ChatClient) {
	msg := map[string]interface{}{
		"type": "user_left",
		"payload": map[string]interface{}{
			"user_id":  client.UserID,
			"username": client.Username,
		},
	}

	room.Broadcast <- &BroadcastMessage{
		Data: msg,
	}
}

// GetOnlineUsers serves the room presence list over HTTP.
func (h *ChatWebSocketHandler) GetOnlineUsers(c echo.Context) error {
	roomID := c.Param("roomId")

	ctx := c.Request().Context()
	key := fmt.Sprintf("chat:room:%s:online_users", roomID)

	result, err := h.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch online users",
		})
	}
	users := make([]UserInfo, 0, len(result))
	for _, data := range result {
		var userInfo UserInfo
		if err := json.Unmarshal([]byte(data), &userInfo); err != nil {
			log.Printf("Failed to unmarshal user info: %v", err)
			continue
		}
		users = append(users, userInfo)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"count":   len(users),
		"users":   users,
	})
}

// GetMessages returns room history, oldest first.
func (h *ChatWebSocketHandler) GetMessages(c echo.Context) error {
	roomID := c.Param("roomId")

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	if limit < 1 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		fmt.Sscanf(v, "%d", &offset)
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.Message
	err := h.db.Raw(`
		SELECT messages.id, messages.room_id, messages.user_id, messages.content,
		       messages.type, messages.created_at, users.username
		FROM messages
		LEFT JOIN users ON messages.user_id = users.id
		WHERE messages.room_id = ?
		ORDER BY messages.created_at ASC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset).Scan(&rows).Error

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch messages",
		})
	}

	for i := range rows {
		if rows[i].Type == "text" {
			rows[i].UserColor = getUserColor(rows[i].UserID)
		}
	}

	return c.JSON(http.StatusOK, rows)
}

func getUserColor(userID uint) string {
	colors := []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8", "#F7DC6F", "#BB8FCE"}
	return colors[userID%uint(len(colors))]
}
