package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOTPMismatch is returned when a code is missing, expired or wrong.
var ErrOTPMismatch = errors.New("otp does not match")

// OTPRepository stores one-time password reset codes.
type OTPRepository interface {
	Save(ctx context.Context, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, email, code string) error
}

type otpRepository struct {
	redis *redis.Client
}

// NewOTPRepository returns a Redis-backed OTP store.
func NewOTPRepository(client *redis.Client) OTPRepository {
	return &otpRepository{redis: client}
}

func otpKey(email string) string {
	return "otp:" + strings.ToLower(strings.TrimSpace(email))
}

func (r *otpRepository) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	return r.redis.Set(ctx, otpKey(email), code, ttl).Err()
}

// Consume deletes the stored code when it matches. A wrong code leaves the
// stored one in place until it expires.
func (r *otpRepository) Consume(ctx context.Context, email, code string) error {
	key := otpKey(email)
	stored, err := r.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPMismatch
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrOTPMismatch
	}
	return r.redis.Del(ctx, key).Err()
}
