package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	data := []byte("png-bytes")
	uri, err := store.PutObject(context.Background(), "images/abc.png", "image/png", data)
	require.NoError(t, err)
	require.Equal(t, "memory://images/abc.png", uri)

	data[0] = 'X'
	got, ok := store.Object("images/abc.png")
	require.True(t, ok)
	require.Equal(t, "png-bytes", string(got))

	_, err = store.PutObject(context.Background(), "", "", nil)
	require.Error(t, err)
}
