package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, `
default_price: 2
effects:
  clap: 0
  "!AirHorn": 5
  random: 9
`)
	c, err := Load(path, "", nil)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"airhorn", "clap"}, c.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	p, ok := c.BasePrice("clap")
	assert.True(t, ok)
	assert.Equal(t, int64(2), p)
	p, ok = c.BasePrice("airhorn")
	assert.True(t, ok)
	assert.Equal(t, int64(5), p)
	_, ok = c.BasePrice("random")
	assert.False(t, ok)
}

func TestLoadDirAndFileOverride(t *testing.T) {
	dir := t.TempDir()
	sounds := filepath.Join(dir, "sounds")
	require.NoError(t, os.Mkdir(sounds, 0o755))
	for _, name := range []string{"clap.mp3", "Wow.OGG", "notes.txt", "damn.wav"} {
		writeFile(t, filepath.Join(sounds, name), "x")
	}
	require.NoError(t, os.Mkdir(filepath.Join(sounds, "nested.mp3"), 0o755))

	path := filepath.Join(dir, "catalog.yaml")
	writeFile(t, path, "effects:\n  damn: 4\n")

	c, err := Load(path, sounds, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"clap", "damn", "wow"}, c.Names())

	p, _ := c.BasePrice("damn")
	assert.Equal(t, int64(4), p)
	p, _ = c.BasePrice("wow")
	assert.Equal(t, int64(1), p)
}

func TestLoadNeedsSource(t *testing.T) {
	_, err := Load("", "", nil)
	assert.True(t, errors.Is(err, ErrNoSource))
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, "effects:\n  clap: 1\n")
	c, err := Load(path, "", nil)
	require.NoError(t, err)

	writeFile(t, path, "effects: [not, a, map")
	require.Error(t, c.Reload())
	assert.Equal(t, []string{"clap"}, c.Names())
}

func TestFromPricesDefaults(t *testing.T) {
	c := FromPrices(map[string]int64{"Clap": 0, "wow": 3})
	p, ok := c.BasePrice("clap")
	require.True(t, ok)
	assert.Equal(t, int64(1), p)
	assert.Equal(t, 2, c.Len())
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, "effects:\n  clap: 1\n")
	c, err := Load(path, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "effects:\n  clap: 1\n  wow: 2\n")

	assert.Eventually(t, func() bool {
		_, ok := c.BasePrice("wow")
		return ok
	}, 5*time.Second, 25*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
