package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedStore(t *testing.T, now time.Time) (*RedisStore, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	s := NewRedisStore(rdb, time.Hour)
	s.now = func() time.Time { return now }
	return s, mock
}

func encode(t *testing.T, sess Session) string {
	t.Helper()
	data, err := json.Marshal(sess)
	require.NoError(t, err)
	return string(data)
}

func TestRevoke(t *testing.T) {
	s, mock := fixedStore(t, time.Now())
	mock.ExpectDel("session:abc").SetVal(1)
	assert.NoError(t, s.Revoke(context.Background(), "abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Valid(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s, mock := fixedStore(t, now)
	token := uuid.NewString()

	mock.ExpectGet("session:" + token).SetVal(encode(t, Session{
		UserID: "pharmacist-3", Role: "staff", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	sess, err := s.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "pharmacist-3", sess.UserID)
	assert.Equal(t, "staff", sess.Role)
	assert.Equal(t, token, sess.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Rejects(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("MalformedToken", func(t *testing.T) {
		s, mock := fixedStore(t, now)
		_, err := s.Get(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrNoSession)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		s, mock := fixedStore(t, now)
		token := uuid.NewString()
		mock.ExpectGet("session:" + token).RedisNil()
		_, err := s.Get(ctx, token)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("Expired", func(t *testing.T) {
		s, mock := fixedStore(t, now)
		token := uuid.NewString()
		mock.ExpectGet("session:" + token).SetVal(encode(t, Session{
			UserID: "u1", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		}))
		_, err := s.Get(ctx, token)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("Garbage", func(t *testing.T) {
		s, mock := fixedStore(t, now)
		token := uuid.NewString()
		mock.ExpectGet("session:" + token).SetVal("{not json")
		_, err := s.Get(ctx, token)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("RedisDown", func(t *testing.T) {
		s, mock := fixedStore(t, now)
		token := uuid.NewString()
		mock.ExpectGet("session:" + token).SetErr(errors.New("connection refused"))
		_, err := s.Get(ctx, token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoSession)
	})
}

func TestCreate(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s, mock := fixedStore(t, now)
	token := uuid.NewString()
	s.newToken = func() string { return token }
	mock.ExpectSet("session:"+token, encode(t, Session{
		UserID: "u9", Role: "admin", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}), time.Hour).SetVal("OK")

	sess, err := s.Create(context.Background(), "u9", "admin")
	require.NoError(t, err)
	assert.Equal(t, token, sess.Token)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.Create(context.Background(), " ", "")
	assert.Error(t, err)
}
