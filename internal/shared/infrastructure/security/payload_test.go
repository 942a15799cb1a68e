package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := CleanPath("  ")
		assert.ErrorContains(t, err, "cannot be empty")
	})

	t.Run("rejects shell characters", func(t *testing.T) {
		for _, c := range forbidden {
			_, err := CleanPath("/tmp/event" + c + "json")
			assert.ErrorContains(t, err, "forbidden character", "character %q", c)
		}
	})

	t.Run("resolves symlinks", func(t *testing.T) {
		dir := t.TempDir()
		real := filepath.Join(dir, "event.json")
		require.NoError(t, os.WriteFile(real, []byte("{}"), 0o600))
		link := filepath.Join(dir, "latest.json")
		require.NoError(t, os.Symlink(real, link))

		got, err := CleanPath(link)
		require.NoError(t, err)
		want, _ := filepath.EvalSymlinks(real)
		assert.Equal(t, want, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := CleanPath(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestReadPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"evt_1"}`), 0o600))

	data, err := ReadPayload(path, MaxWebhookPayload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"evt_1"}`, string(data))

	_, err = ReadPayload(path, 4)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = ReadPayload(dir, MaxWebhookPayload)
	assert.ErrorContains(t, err, "not a regular file")
}
