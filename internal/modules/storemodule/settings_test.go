package storemodule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_DefaultsWrittenOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	st, err := NewSettingsStore(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", st.Get().AI.Model)
	assert.False(t, st.Get().AI.AutoTag)

	// Defaults are persisted, not just in memory.
	again, err := NewSettingsStore(path)
	require.NoError(t, err)
	assert.Equal(t, st.Get(), again.Get())
}

func TestSettings_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	st, err := NewSettingsStore(path)
	require.NoError(t, err)

	next := st.Get()
	next.AI.AutoTag = true
	next.Search.ImagesPerPage = 40
	require.NoError(t, st.Update(next))

	reopened, err := NewSettingsStore(path)
	require.NoError(t, err)
	assert.True(t, reopened.Get().AI.AutoTag)
	assert.Equal(t, 40, reopened.Get().Search.ImagesPerPage)
}

func TestSettings_GetReturnsCopy(t *testing.T) {
	st, err := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	got := st.Get()
	got.AI.Model = "changed"
	assert.Equal(t, "openai", st.Get().AI.Model)
}
