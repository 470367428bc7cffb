package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/talentdesk/employer-access/backend/internal/utils"
)

type Purpose string

const (
	PurposeResetPassword Purpose = "reset_password"
	PurposeChangeEmail   Purpose = "change_email"
)

var ErrInvalidCode = errors.New("invalid or expired verification code")

type Store struct {
	rdb              *redis.Client
	expiration       time.Duration
	operationTimeout time.Duration
	// 同一个验证码允许输错的次数，达到后验证码作废
	maxAttempts int
}

func NewStore(rdb *redis.Client, expiration, operationTimeout time.Duration, maxAttempts int) *Store {
	return &Store{
		rdb:              rdb,
		expiration:       expiration,
		operationTimeout: operationTimeout,
		maxAttempts:      maxAttempts,
	}
}

func (s *Store) Expiration() time.Duration {
	return s.expiration
}

// subject 用来区分同一用途下的不同请求，例如修改邮箱时为 "账户ID:新邮箱"
func key(purpose Purpose, subject string) string {
	return fmt.Sprintf("otp_%s_%s", purpose, subject)
}

func attemptsKey(purpose Purpose, subject string) string {
	return key(purpose, subject) + "_attempts"
}

// Issue 生成新的验证码并覆盖之前未使用的验证码
func (s *Store) Issue(ctx context.Context, purpose Purpose, subject string) (string, error) {
	code, err := utils.GenerateRandomOTP()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	// 新的验证码重新计算输错次数
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(purpose, subject), code, s.expiration)
		pipe.Del(ctx, attemptsKey(purpose, subject))
		return nil
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

// Consume 校验验证码，校验成功后立即删除，验证码只能使用一次
func (s *Store) Consume(ctx context.Context, purpose Purpose, subject, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	stored, err := s.rdb.Get(ctx, key(purpose, subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidCode
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		if err := s.recordFailure(ctx, purpose, subject); err != nil {
			return err
		}
		return ErrInvalidCode
	}

	// 两个请求同时带着正确的验证码到达时，只有删除成功的一方有效
	deleted, err := s.rdb.Del(ctx, key(purpose, subject), attemptsKey(purpose, subject)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrInvalidCode
	}

	return nil
}

func (s *Store) recordFailure(ctx context.Context, purpose Purpose, subject string) error {
	if s.maxAttempts <= 0 {
		return nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey(purpose, subject))
		pipe.Expire(ctx, attemptsKey(purpose, subject), s.expiration)
		return nil
	})
	if err != nil {
		return err
	}

	if incr.Val() >= int64(s.maxAttempts) {
		return s.rdb.Del(ctx, key(purpose, subject), attemptsKey(purpose, subject)).Err()
	}
	return nil
}
