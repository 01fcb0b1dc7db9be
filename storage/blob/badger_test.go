package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
)

func TestStore(t *testing.T) {
	store, err := Open("", nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		blob := core.Blob{Key: "signatures/1.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G', 0}}
		require.NoError(t, store.Put(ctx, blob))

		got, err := store.Get(ctx, blob.Key)
		require.NoError(t, err)
		assert.Equal(t, blob, got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, core.Blob{Key: "doc", ContentType: "text/plain", Data: []byte("v1")}))
		require.NoError(t, store.Put(ctx, core.Blob{Key: "doc", Data: []byte("v2")}))

		got, err := store.Get(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, "", got.ContentType)
		assert.Equal(t, []byte("v2"), got.Data)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, core.Blob{Key: "gone", Data: []byte("x")}))
		require.NoError(t, store.Delete(ctx, "gone"))
		_, err := store.Get(ctx, "gone")
		assert.Equal(t, core.ErrBlobNotFound, err)
		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.Error(t, store.Put(ctx, core.Blob{Data: []byte("x")}))
	})
}
