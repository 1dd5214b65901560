package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ChatRelay/models"
	"ChatRelay/relay"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) (*ChatRoomManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewChatRoomManager(rdb), mr
}

func newTestClient(id string, userID uint, username string) *ChatClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatClient{
		ID:       id,
		UserID:   userID,
		Username: username,
		Color:    "#4ECDC4",
		Send:     make(chan map[string]interface{}, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func Test_GetOrCreateRoom_Returns_Same_Room(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t)

	a := manager.GetOrCreateRoom("room-1")
	b := manager.GetOrCreateRoom("room-1")
	assert.Same(a, b)

	c := manager.GetOrCreateRoom("room-2")
	assert.NotSame(a, c)
}

func Test_Lookup_Misses_Unknown_Room(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t)

	_, ok := manager.Lookup("nowhere")
	assert.False(ok)

	manager.GetOrCreateRoom("somewhere")
	_, ok = manager.Lookup("somewhere")
	assert.True(ok)
}

func Test_Register_Adds_Client_And_Presence(t *testing.T) {
	assert := require.New(t)
	manager, mr := newTestManager(t)

	room := manager.GetOrCreateRoom("room-1")
	client := newTestClient("c1", 42, "alice")

	room.Register <- client

	assert.Eventually(func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		_, ok := room.Clients["c1"]
		return ok
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(func() bool {
		return mr.Exists("chat:room:room-1:online_users")
	}, time.Second, 10*time.Millisecond)

	users, err := room.GetOnlineUsersFromRedis()
	assert.NoError(err)
	assert.Len(users, 1)
	assert.Equal(uint(42), users[0].UserID)
	assert.Equal("alice", users[0].Username)
}

func Test_Broadcast_Reaches_All_Clients_Except_Excluded(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t)

	room := manager.GetOrCreateRoom("room-1")
	alice := newTestClient("c1", 1, "alice")
	bob := newTestClient("c2", 2, "bob")

	room.Register <- alice
	room.Register <- bob

	assert.Eventually(func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		return len(room.Clients) == 2
	}, time.Second, 10*time.Millisecond)

	room.Broadcast <- &BroadcastMessage{
		Data:      map[string]interface{}{"type": "typing"},
		ExceptIDs: map[string]bool{alice.ID: true},
	}

	select {
	case msg := <-bob.Send:
		assert.Equal("typing", msg["type"])
	case <-time.After(time.Second):
		t.Fatal("bob never received the broadcast")
	}

	select {
	case <-alice.Send:
		t.Fatal("alice was excluded but received the broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_Unregister_Last_Connection_Drops_Presence(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t)

	room := manager.GetOrCreateRoom("room-1")

	// Two tabs of the same user
	tab1 := newTestClient("c1", 42, "alice")
	tab2 := newTestClient("c2", 42, "alice")
	room.Register <- tab1
	room.Register <- tab2

	assert.Eventually(func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		return len(room.Clients) == 2
	}, time.Second, 10*time.Millisecond)

	room.Unregister <- tab1
	assert.Eventually(func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		return len(room.Clients) == 1
	}, time.Second, 10*time.Millisecond)

	// Still online through the second tab
	users, err := room.GetOnlineUsersFromRedis()
	assert.NoError(err)
	assert.Len(users, 1)

	room.Unregister <- tab2
	assert.Eventually(func() bool {
		users, err := room.GetOnlineUsersFromRedis()
		return err == nil && len(users) == 0
	}, time.Second, 10*time.Millisecond)
}

func Test_HandleFrame_Skips_Own_Origin(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	h := NewChatWebSocketHandler(nil, rdb, nil, "local-instance")

	room := h.roomManager.GetOrCreateRoom("room-1")
	client := newTestClient("c1", 1, "alice")
	room.Register <- client

	assert.Eventually(func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		return len(room.Clients) == 1
	}, time.Second, 10*time.Millisecond)

	own := relay.Frame{ID: "f1", Origin: h.instanceID, RoomID: "room-1", Content: "mine"}
	assert.NoError(h.HandleFrame(context.Background(), own))

	foreign := relay.Frame{ID: "f2", Origin: "other-instance", RoomID: "room-1", Content: "theirs"}
	assert.NoError(h.HandleFrame(context.Background(), foreign))

	select {
	case msg := <-client.Send:
		payload := msg["payload"].(map[string]interface{})
		assert.Equal("theirs", payload["content"])
	case <-time.After(time.Second):
		t.Fatal("relayed frame never delivered")
	}

	select {
	case <-client.Send:
		t.Fatal("own frame must not be redelivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_HandleFrame_Ignores_Rooms_Without_Local_Subscribers(t *testing.T) {
	assert := require.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	h := NewChatWebSocketHandler(nil, rdb, nil, "local-instance")

	frame := relay.Frame{ID: "f1", Origin: "other-instance", RoomID: "empty-room", Content: "hi"}
	assert.NoError(h.HandleFrame(context.Background(), frame))
}

type stubPublisher struct {
	frames []relay.Frame
	err    error
}

func (p *stubPublisher) Publish(f relay.Frame) error {
	if p.err != nil {
		return p.err
	}
	p.frames = append(p.frames, f)
	return nil
}

// newBareHandler builds a handler without persistence workers, so queued
// messages stay inspectable on dbQueue.
func newBareHandler(t *testing.T) (*ChatWebSocketHandler, *ChatRoom, *ChatClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	h := &ChatWebSocketHandler{
		redis:       rdb,
		roomManager: NewChatRoomManager(rdb),
		instanceID:  "local-instance",
		dbQueue:     make(chan *models.Message, 8),
	}

	room := h.roomManager.GetOrCreateRoom("room-1")
	client := newTestClient("c1", 1, "alice")
	client.Room = room
	room.Register <- client

	require.Eventually(t, func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		return len(room.Clients) == 1
	}, time.Second, 10*time.Millisecond)

	return h, room, client
}

func Test_SendMessage_Drops_Invalid_Content(t *testing.T) {
	assert := require.New(t)
	h, _, client := newBareHandler(t)

	h.handleChatMessage(client, map[string]interface{}{"content": ""})
	h.handleChatMessage(client, map[string]interface{}{"content": strings.Repeat("a", maxMessageLength+1)})
	h.handleChatMessage(client, map[string]interface{}{"content": 7})
	h.handleChatMessage(client, nil)
	h.handleMessage(client, map[string]interface{}{"payload": map[string]interface{}{"content": "no type"}})

	assert.Equal(0, len(h.dbQueue))

	select {
	case msg := <-client.Send:
		t.Fatalf("invalid frame was broadcast: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_SendMessage_Queues_Persist_And_Publishes_With_Origin(t *testing.T) {
	assert := require.New(t)
	h, _, client := newBareHandler(t)

	pub := &stubPublisher{}
	h.publisher = pub

	h.handleChatMessage(client, map[string]interface{}{"content": "hello"})

	assert.Len(pub.frames, 1)
	assert.Equal("local-instance", pub.frames[0].Origin)
	assert.Equal("room-1", pub.frames[0].RoomID)
	assert.Equal("hello", pub.frames[0].Content)

	assert.Equal(1, len(h.dbQueue))
	queued := <-h.dbQueue
	assert.Equal("hello", queued.Content)
	assert.Equal("room-1", queued.RoomID)

	select {
	case msg := <-client.Send:
		payload := msg["payload"].(map[string]interface{})
		assert.Equal("hello", payload["content"])
	case <-time.After(time.Second):
		t.Fatal("message never broadcast to the room")
	}
}

func Test_SendMessage_Broadcasts_Locally_When_Publish_Fails(t *testing.T) {
	assert := require.New(t)
	h, _, client := newBareHandler(t)

	h.publisher = &stubPublisher{err: errors.New("broker down")}

	h.handleChatMessage(client, map[string]interface{}{"content": "still here"})

	select {
	case msg := <-client.Send:
		payload := msg["payload"].(map[string]interface{})
		assert.Equal("still here", payload["content"])
	case <-time.After(time.Second):
		t.Fatal("broker outage must not block local delivery")
	}

	assert.Equal(1, len(h.dbQueue))
}

func Test_Last_Unregister_Releases_The_Room(t *testing.T) {
	assert := require.New(t)
	manager, _ := newTestManager(t)

	room := manager.GetOrCreateRoom("room-1")
	client := newTestClient("c1", 1, "alice")
	room.Register <- client

	assert.Eventually(func() bool {
		room.mu.RLock()
		defer room.mu.RUnlock()
		return len(room.Clients) == 1
	}, time.Second, 10*time.Millisecond)

	room.Unregister <- client

	assert.Eventually(func() bool {
		_, ok := manager.Lookup("room-1")
		return !ok
	}, time.Second, 10*time.Millisecond)

	select {
	case <-room.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("released room's dispatch loop was not stopped")
	}

	// The next subscriber gets a fresh room
	again := manager.GetOrCreateRoom("room-1")
	assert.NotSame(room, again)
}

func Test_GetMessages_Clamps_Limit(t *testing.T) {
	assert := require.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(err)

	h := &ChatWebSocketHandler{db: gormDB}

	mock.ExpectQuery(`(?s)SELECT messages\.id.*LIMIT`).
		WithArgs("room-1", 200, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "user_id", "content", "type", "created_at", "username"}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("roomId")
	c.SetParamValues("room-1")

	assert.NoError(h.GetMessages(c))
	assert.Equal(http.StatusOK, rec.Code)
	assert.NoError(mock.ExpectationsWereMet())
}
