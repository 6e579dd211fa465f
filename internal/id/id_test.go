package id

import (
	"sync"
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSequenceStartsAtOne(t *testing.T) {
	t.Parallel()

	seq := NewSequence()
	for _, want := range []string{"1", "2", "3"} {
		got, err := seq.NewID()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestSequenceUniqueUnderConcurrency(t *testing.T) {
	t.Parallel()

	seq := NewSequence()
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.NewID()
			require.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 50)
}

// TestUUIDNewID ensures generated IDs are unique and valid UUIDs.
func TestUUIDNewID(t *testing.T) {
	t.Parallel()

	gen := NewUUID()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
	_, err = goUUID.Parse(id1)
	require.NoError(t, err)
}

func TestForScheme(t *testing.T) {
	t.Parallel()

	g, err := ForScheme("")
	require.NoError(t, err)
	require.IsType(t, &Sequence{}, g)

	g, err = ForScheme("uuid")
	require.NoError(t, err)
	require.IsType(t, UUID{}, g)

	_, err = ForScheme("snowflake")
	require.Error(t, err)
}
