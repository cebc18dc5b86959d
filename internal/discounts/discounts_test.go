package discounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

func TestService_CreateStoresUppercase(t *testing.T) {
	ctx := context.Background()
	s := NewService(docstore.NewMemoryBackend(zap.NewNop()))

	c, err := s.Create(ctx, Code{Code: "  summer10 ", DiscountPercentage: 10, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", c.Code)

	got, err := s.FindByCode(ctx, "Summer10")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, 10.0, got.DiscountPercentage)
}

func TestService_FindByCodeMissingIsNil(t *testing.T) {
	ctx := context.Background()
	s := NewService(docstore.NewMemoryBackend(zap.NewNop()))

	got, err := s.FindByCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.FindByCode(ctx, "   ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_FindByCodeReturnsInactive(t *testing.T) {
	ctx := context.Background()
	s := NewService(docstore.NewMemoryBackend(zap.NewNop()))

	_, err := s.Create(ctx, Code{Code: "OLD", DiscountPercentage: 5, IsActive: false})
	require.NoError(t, err)

	got, err := s.FindByCode(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
}

func TestService_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewService(docstore.NewMemoryBackend(zap.NewNop()))

	a, err := s.Create(ctx, Code{Code: "EID", DiscountPercentage: 15, IsActive: true})
	require.NoError(t, err)
	_, err = s.Create(ctx, Code{Code: "eid", DiscountPercentage: 20})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	b, err := s.Create(ctx, Code{Code: "RAMADAN", DiscountPercentage: 20})
	require.NoError(t, err)
	_, err = s.Update(ctx, b.ID, Code{Code: "Eid", DiscountPercentage: 20})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	// keeping its own code is fine
	updated, err := s.Update(ctx, a.ID, Code{Code: "eid", DiscountPercentage: 25, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.DiscountPercentage)
	assert.True(t, a.CreatedAt.Equal(updated.CreatedAt))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "EID", all[0].Code)
	assert.Equal(t, "RAMADAN", all[1].Code)
}
