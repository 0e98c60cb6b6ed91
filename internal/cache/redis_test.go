package cache

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localbiz-extractor/internal/common/database"
	"localbiz-extractor/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func createMockTier(t *testing.T) (*RedisTier, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	tier := NewRedisTier(&database.RedisClient{Client: client}, "business_cache")
	return tier, mock
}

// ==========================
// Miss and Error Paths
// ==========================

func TestRedisTier_Get_CleanMiss(t *testing.T) {
	tier, mock := createMockTier(t)

	mock.ExpectGet("business_cache:fp-1").RedisNil()

	_, found, err := tier.Get(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTier_Get_TierError(t *testing.T) {
	tier, mock := createMockTier(t)

	mock.ExpectGet("business_cache:fp-1").SetErr(stderrors.New("connection refused"))

	_, found, err := tier.Get(context.Background(), "fp-1")
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, errors.ErrCodeCacheTierUnavailable, errors.Code(err))
}

func TestRedisTier_Get_CorruptEntryDropped(t *testing.T) {
	tier, mock := createMockTier(t)

	mock.ExpectGet("business_cache:fp-1").SetVal("{not json")
	mock.ExpectDel("business_cache:fp-1").SetVal(1)

	_, found, err := tier.Get(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTier_Put_SkipsExpiredEntry(t *testing.T) {
	tier, mock := createMockTier(t)

	entry := Entry{
		URL:       "https://maps.google.com/maps/place/x",
		StartedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	// No SET expectation registered, so any write would fail the mock.
	require.NoError(t, tier.Put(context.Background(), "fp-1", entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTier_Delete_TierError(t *testing.T) {
	tier, mock := createMockTier(t)

	mock.ExpectDel("business_cache:fp-1").SetErr(stderrors.New("connection reset"))

	err := tier.Delete(context.Background(), "fp-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCacheTierUnavailable, errors.Code(err))
}
