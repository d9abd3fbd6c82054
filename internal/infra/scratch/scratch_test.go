package scratch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultAndCustomDir(t *testing.T) {
	d, err := New("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "stlquote"), d.Path())

	custom := filepath.Join(t.TempDir(), "a", "b")
	d, err = New(custom)
	require.NoError(t, err)
	info, err := os.Stat(custom)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNew_FailsOnUnwritableBase(t *testing.T) {
	_, err := New("/dev/null/not-allowed")
	assert.Error(t, err)
}

func TestAcquireRelease(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	f, err := d.Acquire()
	require.NoError(t, err)
	assert.Equal(t, ".stl", filepath.Ext(f.Name()))
	assert.Equal(t, d.Path(), filepath.Dir(f.Name()))

	_, err = f.Write([]byte("solid x"))
	require.NoError(t, err)

	n, err := d.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.Release())
	require.NoError(t, f.Release())

	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err))
	n, err = d.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRelease_ToleratesAlreadyRemovedFile(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)
	f, err := d.Acquire()
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.Name()))
	assert.NoError(t, f.Release())
}

func TestAcquire_ConcurrentNamesAreUnique(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	const n = 64
	var wg sync.WaitGroup
	names := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := d.Acquire()
			if err != nil {
				t.Error(err)
				return
			}
			names <- f.Name()
			_ = f.Close()
		}()
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for name := range names {
		assert.False(t, seen[name], "duplicate scratch name %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, n)

	count, err := d.Count()
	require.NoError(t, err)
	assert.Equal(t, n, count)
}
