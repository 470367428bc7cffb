package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, 15*time.Minute, time.Second, 3), mr
}

func TestIssueAndConsume(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, PurposeResetPassword, "ada@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	require.NoError(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", code))

	// 只能使用一次
	assert.ErrorIs(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", code), ErrInvalidCode)
}

func TestConsumeWrongCodeKeepsCode(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, PurposeChangeEmail, "1:new@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, store.Consume(ctx, PurposeChangeEmail, "1:new@example.com", wrong), ErrInvalidCode)
	assert.NoError(t, store.Consume(ctx, PurposeChangeEmail, "1:new@example.com", code))
}

func TestPurposesAreIsolated(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, PurposeResetPassword, "ada@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Consume(ctx, PurposeChangeEmail, "ada@example.com", code), ErrInvalidCode)
}

func TestCodeExpires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, PurposeResetPassword, "ada@example.com")
	require.NoError(t, err)

	mr.FastForward(16 * time.Minute)
	assert.ErrorIs(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", code), ErrInvalidCode)
}

func TestTooManyWrongCodesInvalidatesCode(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, PurposeResetPassword, "ada@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", wrong), ErrInvalidCode)
	}

	// 输错次数达到上限后，正确的验证码也不再有效
	assert.False(t, mr.Exists("otp_reset_password_ada@example.com"))
	assert.ErrorIs(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", code), ErrInvalidCode)

	// 重新申请后次数清零
	code, err = store.Issue(ctx, PurposeResetPassword, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, mr.Exists("otp_reset_password_ada@example.com_attempts"))
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", wrong), ErrInvalidCode)
	}
	require.NoError(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", code))
	assert.False(t, mr.Exists("otp_reset_password_ada@example.com_attempts"))
}

func TestAttemptsAreCountedPerSubject(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ada, err := store.Issue(ctx, PurposeResetPassword, "ada@example.com")
	require.NoError(t, err)
	grace, err := store.Issue(ctx, PurposeResetPassword, "grace@example.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_ = store.Consume(ctx, PurposeResetPassword, "ada@example.com", "not-a-code")
	}

	assert.ErrorIs(t, store.Consume(ctx, PurposeResetPassword, "ada@example.com", ada), ErrInvalidCode)
	assert.NoError(t, store.Consume(ctx, PurposeResetPassword, "grace@example.com", grace))
}
