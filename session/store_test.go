package session

import (
	"context"
	"testing"
	"time"

	"ChatRelay/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, &config.SessionConfig{
		CookieName: "TESTSESSION",
		TTLMinutes: 30,
	})
	return store, mr
}

func Test_New_Session_Is_Fresh_And_Unsaved(t *testing.T) {
	assert := require.New(t)
	store, mr := newTestStore(t)

	sess := store.New()
	assert.NotEmpty(sess.ID)
	assert.True(sess.IsNew())
	assert.False(sess.IsDestroyed())

	// Not in Redis until saved
	assert.False(mr.Exists("session:" + sess.ID))
}

func Test_Save_Then_Load_Round_Trips_Attributes(t *testing.T) {
	assert := require.New(t)
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := store.New()
	sess.Set("user_id", "42")
	sess.SetInt("page_views", 3)
	assert.NoError(store.Save(ctx, sess))
	assert.False(sess.IsNew())

	loaded, err := store.Load(ctx, sess.ID)
	assert.NoError(err)
	assert.Equal("42", loaded.Get("user_id"))
	assert.Equal(3, loaded.GetInt("page_views"))
	assert.False(loaded.IsNew())
}

func Test_Load_Unknown_Id_Returns_ErrNotFound(t *testing.T) {
	assert := require.New(t)
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), "no-such-session")
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Save_Sets_TTL(t *testing.T) {
	assert := require.New(t)
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := store.New()
	assert.NoError(store.Save(ctx, sess))

	ttl := mr.TTL("session:" + sess.ID)
	assert.Equal(30*time.Minute, ttl)
}

func Test_Expired_Session_Is_Gone(t *testing.T) {
	assert := require.New(t)
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := store.New()
	sess.SetInt("page_views", 7)
	assert.NoError(store.Save(ctx, sess))

	mr.FastForward(31 * time.Minute)

	_, err := store.Load(ctx, sess.ID)
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Touch_Slides_The_TTL(t *testing.T) {
	assert := require.New(t)
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := store.New()
	assert.NoError(store.Save(ctx, sess))

	mr.FastForward(20 * time.Minute)
	assert.NoError(store.Touch(ctx, sess))

	// Another 20 minutes would have killed an untouched session
	mr.FastForward(20 * time.Minute)

	_, err := store.Load(ctx, sess.ID)
	assert.NoError(err)
}

func Test_Destroy_Removes_The_Record(t *testing.T) {
	assert := require.New(t)
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := store.New()
	assert.NoError(store.Save(ctx, sess))
	assert.True(mr.Exists("session:" + sess.ID))

	assert.NoError(store.Destroy(ctx, sess))
	assert.True(sess.IsDestroyed())
	assert.False(mr.Exists("session:" + sess.ID))

	_, err := store.Load(ctx, sess.ID)
	assert.ErrorIs(err, ErrNotFound)
}

func Test_GetInt_On_Missing_Key_Returns_Zero(t *testing.T) {
	assert := require.New(t)
	store, _ := newTestStore(t)

	sess := store.New()
	assert.Equal(0, sess.GetInt("page_views"))
}
