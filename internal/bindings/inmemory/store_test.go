package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfabric/pipeliner/internal/models"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	binding := models.NextGroupBinding{NextID: 42, Key: models.GroupKeyForNext("dev1", 42)}
	require.NoError(t, store.Put(ctx, binding))

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, binding, *got)
}

func TestStore_GetAbsentReportsGroupMissing(t *testing.T) {
	store := NewStore()

	_, err := store.Get(context.Background(), 7)
	assert.ErrorIs(t, err, models.ErrGroupMissing)
}
