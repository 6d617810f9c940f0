// Package repo implements the data persistence layer for discussions,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to implement safe-retry semantics for POST endpoints.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (user_id, scope, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at > ?", userID, scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique
// violation. Expired rows for the same tuple are purged first so a key can
// be reused after its TTL.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at <= ?", userID, scope, key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     userID,
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// IdempotencyStore binds the helpers above to a database and a TTL so the
// HTTP layer can use them without holding a *gorm.DB.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Lookup returns the stored outcome, or (nil, nil) when there is none.
func (s IdempotencyStore) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Save records an outcome. A concurrent duplicate is not an error: the
// first writer wins and later retries replay its result.
func (s IdempotencyStore) Save(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	_, err := CreateIdempotency(ctx, s.DB, userID, scope, key, resourceID, status, s.TTL)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}
