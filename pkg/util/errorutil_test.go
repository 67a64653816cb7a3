package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	t.Run("passes domain errors through", func(t *testing.T) {
		err := NewForbidden("nope")
		de := ToDomainError(fmt.Errorf("wrapped: %w", err))
		assert.Equal(t, CodeForbidden, de.Code)
		assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	})

	t.Run("maps no rows to not found", func(t *testing.T) {
		de := ToDomainError(pgx.ErrNoRows)
		assert.Equal(t, CodeNotFound, de.Code)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	})

	t.Run("hides unknown errors", func(t *testing.T) {
		de := ToDomainError(errors.New("disk on fire"))
		assert.Equal(t, CodeInternal, de.Code)
		assert.Equal(t, "internal server error", de.Message)
		assert.ErrorContains(t, de, "disk on fire")
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewRateLimited("slow down"), CodeRateLimited))
	assert.False(t, HasCode(NewRateLimited("slow down"), CodeStorage))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("read-only file system")
	err := NewStorageError(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeStorage))
}
