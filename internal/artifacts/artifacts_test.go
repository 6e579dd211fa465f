package artifacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bossmind/videomaker/internal/storage/memory"
)

const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestSaveContentAddressed(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	s := New(blobs, "/generated/")
	require.True(t, s.Enabled())

	uri, err := s.Save(context.Background(), KindImage, ".png", "image/png", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "memory://generated/images/"+helloSHA+".png", uri)

	data, ok := blobs.Object("generated/images/" + helloSHA + ".png")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)
}

func TestPathWithoutPrefix(t *testing.T) {
	t.Parallel()

	s := New(nil, "")
	require.Equal(t, "audio/"+helloSHA+".mp3", s.Path(KindAudio, "mp3", []byte("hello")))
	require.Equal(t, "audio/"+helloSHA, s.Path(KindAudio, "", []byte("hello")))
}

func TestDisabledStoreIsNoop(t *testing.T) {
	t.Parallel()

	s := New(nil, "x")
	require.False(t, s.Enabled())
	uri, err := s.Save(context.Background(), KindAudio, "mp3", "audio/mpeg", []byte("a"))
	require.NoError(t, err)
	require.Empty(t, uri)

	var nilStore *Store
	require.False(t, nilStore.Enabled())
}

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket gone")
}

func TestSaveWrapsErrors(t *testing.T) {
	t.Parallel()

	_, err := New(failingBlobs{}, "").Save(context.Background(), KindImage, "png", "image/png", []byte("x"))
	require.ErrorContains(t, err, "save images artifact: bucket gone")
}
