package querymodule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

func newTestEngine(t *testing.T, ids ...string) (*Engine, *storemodule.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storemodule.NewStore(filepath.Join(dir, "imageData.json"), nil)
	require.NoError(t, err)
	for _, id := range ids {
		_, _, err := store.Create(id, filepath.Join(dir, id))
		require.NoError(t, err)
	}
	engine := NewEngine(store, 20)
	engine.fileExists = func(string) bool { return true }
	engine.newSeed = func() int64 { return 42 }
	return engine, store
}

func names(page Page) []string {
	out := make([]string, len(page.Items))
	for i, rec := range page.Items {
		out[i] = rec.Name
	}
	return out
}

func TestQuery_PaginationWindows(t *testing.T) {
	engine, _ := newTestEngine(t, "a.png", "b.png", "c.png", "d.png", "e.png")

	first := engine.Query("", ModeFirstToLast, 0, 2)
	assert.Equal(t, 5, first.Total)
	assert.True(t, first.HasMore)
	assert.Len(t, first.Items, 2)

	last := engine.Query("", ModeFirstToLast, 4, 2)
	assert.False(t, last.HasMore)
	assert.Len(t, last.Items, 1)

	past := engine.Query("", ModeFirstToLast, 10, 2)
	assert.False(t, past.HasMore)
	assert.Empty(t, past.Items)
}

func TestQuery_HasMoreFalseOnExactBoundary(t *testing.T) {
	engine, _ := newTestEngine(t, "a.png", "b.png", "c.png", "d.png")

	page := engine.Query("", ModeFirstToLast, 2, 2)
	assert.False(t, page.HasMore)
	assert.Len(t, page.Items, 2)
}

func TestQuery_RandomOrderStableAcrossPages(t *testing.T) {
	ids := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"}
	engine, _ := newTestEngine(t, ids...)

	whole := names(engine.Query("", ModeRandom, 0, 6))
	require.Len(t, whole, 6)

	var paged []string
	for offset := 0; offset < 6; offset += 2 {
		paged = append(paged, names(engine.Query("", ModeRandom, offset, 2))...)
	}
	assert.Equal(t, whole, paged)
	assert.ElementsMatch(t, ids, whole)
}

func TestQuery_SubstringSearchAcrossFields(t *testing.T) {
	engine, store := newTestEngine(t, "a.png", "b.png", "c.png", "d.png", "gradientx.png")

	_, err := store.SetTags("a.png", []string{"gradient", "BUTTON"})
	require.NoError(t, err)
	_, err = store.SetOCRText("b.png", "press the button to continue")
	require.NoError(t, err)
	_, err = store.SetDescription("c.png", "a plain wall")
	require.NoError(t, err)
	_, err = store.SetTitle("d.png", "Gradient Sky")
	require.NoError(t, err)
	engine.Invalidate()

	assert.ElementsMatch(t, []string{"a.png", "d.png"},
		names(engine.Query("grad", ModeFirstToLast, 0, 20)))
	assert.ElementsMatch(t, []string{"a.png", "b.png"},
		names(engine.Query("BUTTON", ModeFirstToLast, 0, 20)))
	assert.ElementsMatch(t, []string{"c.png"},
		names(engine.Query("wall", ModeFirstToLast, 0, 20)))
	assert.Empty(t, names(engine.Query("nothing-matches", ModeFirstToLast, 0, 20)))

	// A term that only occurs in a filename matches nothing; records
	// are found by what is known about them, not what they are called.
	assert.Empty(t, names(engine.Query("gradientx", ModeFirstToLast, 0, 20)))
}

func TestQuery_MissingFilesSkipped(t *testing.T) {
	engine, _ := newTestEngine(t, "a.png", "b.png", "c.png")
	engine.fileExists = func(path string) bool {
		return filepath.Base(path) != "b.png"
	}

	page := engine.Query("", ModeFirstToLast, 0, 20)
	assert.Equal(t, 2, page.Total)
	assert.NotContains(t, names(page), "b.png")
}

func TestQuery_InvalidationPicksUpMembershipChanges(t *testing.T) {
	engine, store := newTestEngine(t, "a.png", "b.png")

	before := engine.Query("", ModeFirstToLast, 0, 20)
	assert.Equal(t, 2, before.Total)

	_, err := store.Delete("a.png")
	require.NoError(t, err)

	// The ordering cache holds the old membership until invalidated,
	// but the deleted record is no longer materialized into the page.
	stale := engine.Query("", ModeFirstToLast, 0, 20)
	assert.Equal(t, 2, stale.Total)
	assert.Equal(t, []string{"b.png"}, names(stale))

	engine.Invalidate()
	after := engine.Query("", ModeFirstToLast, 0, 20)
	assert.Equal(t, 1, after.Total)
	assert.Equal(t, []string{"b.png"}, names(after))
}

func TestTagFrequencies(t *testing.T) {
	engine, store := newTestEngine(t, "a.png", "b.png", "c.png")

	for _, set := range []struct {
		id   string
		tags []string
	}{
		{"a.png", []string{"sunset", "beach"}},
		{"b.png", []string{"Sunset", "pier"}},
		{"c.png", []string{"beach"}},
	} {
		_, err := store.SetTags(set.id, set.tags)
		require.NoError(t, err)
	}

	all := engine.TagFrequencies("")
	require.Len(t, all, 3)
	assert.Equal(t, "beach", all[0].Name)
	assert.Equal(t, 2, all[0].Count)

	sun := engine.TagFrequencies("SUN")
	require.Len(t, sun, 1)
	assert.Equal(t, 2, sun[0].Count)
}

func TestQuery_DefaultModeForUnknownSort(t *testing.T) {
	engine, _ := newTestEngine(t, "a.png", "b.png")

	got := engine.Query("", "bogus", 0, 20)
	want := engine.Query("", ModeChronological, 0, 20)
	assert.Equal(t, names(want), names(got))
}
