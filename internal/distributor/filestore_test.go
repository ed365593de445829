package distributor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileContentStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "welcome.json"),
		[]byte(`{"name":"Welcome","template":{"widgets":["clock"]},"dataSources":{"news":"https://example.com/feed"}}`),
		0o644))

	store := NewFileContentStore(dir)

	descriptor, err := store.GetContent(context.Background(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, "welcome", descriptor.ID)
	assert.Equal(t, "Welcome", descriptor.Name)
	assert.JSONEq(t, `{"widgets":["clock"]}`, string(descriptor.Template))
	assert.Equal(t, "https://example.com/feed", descriptor.DataSources["news"])
}

func TestFileContentStoreMissing(t *testing.T) {
	store := NewFileContentStore(t.TempDir())

	_, err := store.GetContent(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestFileContentStoreRejectsTraversal(t *testing.T) {
	store := NewFileContentStore(t.TempDir())

	for _, id := range []string{"../etc/passwd", "a/b", `a\b`, ""} {
		_, err := store.GetContent(context.Background(), id)
		assert.ErrorIs(t, err, ErrContentNotFound, "id %q", id)
	}
}

func TestFileContentStoreNameDefaultsToID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "plain.json"),
		[]byte(`{"template":{}}`),
		0o644))

	store := NewFileContentStore(dir)
	descriptor, err := store.GetContent(context.Background(), "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", descriptor.Name)
}
