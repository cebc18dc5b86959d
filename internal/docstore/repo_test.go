package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type note struct {
	Meta
	Text string `json:"text"`
}

func TestRepo_StampsAndKeepsCreatedAt(t *testing.T) {
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewRepo[note](Open[note](NewMemoryBackend(zap.NewNop()), "notes")).
		WithClock(func() time.Time { return clock })
	ctx := context.Background()

	n, err := repo.Create(ctx, note{Meta: Meta{ID: "ignored"}, Text: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	assert.NotEqual(t, "ignored", n.ID)
	assert.True(t, n.CreatedAt.Equal(clock))

	clock = clock.Add(time.Hour)
	updated, err := repo.Replace(ctx, n.ID, note{Text: "bye"})
	require.NoError(t, err)
	assert.Equal(t, n.ID, updated.ID)
	assert.True(t, updated.CreatedAt.Equal(n.CreatedAt))
	assert.True(t, updated.UpdatedAt.Equal(clock))

	got, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "bye", got.Text)
	assert.Equal(t, n.ID, got.ID)

	_, err = repo.Replace(ctx, "missing", note{})
	assert.ErrorIs(t, err, ErrNotFound)

	clock = clock.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, n.ID, map[string]any{"text": "patched"}))
	got, err = repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "patched", got.Text)
	assert.True(t, got.UpdatedAt.Equal(clock))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, n.ID, all[0].ID)
}
