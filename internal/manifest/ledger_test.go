package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bluesky-manifest.json")
	return NewLedger(path), path
}

func TestLedger_Load_missingFile(t *testing.T) {
	ledger, path := newTestLedger(t)

	m, err := ledger.Load()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Empty(t, m.PostedSlugs)
	assert.NotNil(t, m.PostedSlugs)
	assert.WithinDuration(t, time.Now().UTC(), m.LastUpdated, time.Minute)

	// loading must not create the file
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLedger_Load_corruptFile(t *testing.T) {
	ledger, path := newTestLedger(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json at all"), 0644))

	m, err := ledger.Load()
	assert.Nil(t, m)
	assert.Error(t, err)
}

func TestLedger_SaveLoad(t *testing.T) {
	ledger, path := newTestLedger(t)

	err := ledger.Save(&Manifest{PostedSlugs: []string{"first-post", "second-post"}})
	require.NoError(t, err)

	m, err := ledger.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"first-post", "second-post"}, m.PostedSlugs)
	assert.WithinDuration(t, time.Now().UTC(), m.LastUpdated, time.Minute)

	// the file stays human-diffable: two-space indent, trailing newline
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"postedSlugs\": [\n    \"first-post\",\n    \"second-post\"\n  ],\n")
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func TestLedger_MarkPostedAndIsPosted(t *testing.T) {
	ledger, _ := newTestLedger(t)

	posted, err := ledger.IsPosted("hello-world")
	require.NoError(t, err)
	assert.False(t, posted)

	require.NoError(t, ledger.MarkPosted("hello-world"))

	posted, err = ledger.IsPosted("hello-world")
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestLedger_MarkPosted_idempotent(t *testing.T) {
	ledger, path := newTestLedger(t)

	require.NoError(t, ledger.MarkPosted("hello-world"))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// marking again is a no-op: the file bytes, including the
	// lastUpdated stamp, stay exactly as they were
	require.NoError(t, ledger.MarkPosted("hello-world"))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	m, err := ledger.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello-world"}, m.PostedSlugs)
}

func TestLedger_DiffNew(t *testing.T) {
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.MarkPosted("already-posted"))

	newSlugs, err := ledger.DiffNew([]string{"newest", "already-posted", "oldest"})
	require.NoError(t, err)

	// input order preserved
	assert.Equal(t, []string{"newest", "oldest"}, newSlugs)
}

func TestLedger_DiffNew_allPosted(t *testing.T) {
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.MarkPosted("one"))
	require.NoError(t, ledger.MarkPosted("two"))

	newSlugs, err := ledger.DiffNew([]string{"one", "two"})
	require.NoError(t, err)
	require.NotNil(t, newSlugs)
	assert.Empty(t, newSlugs)
}

func TestLedger_readsFreshFromDisk(t *testing.T) {
	ledger, path := newTestLedger(t)
	require.NoError(t, ledger.MarkPosted("one"))

	// an external edit between calls is picked up
	require.NoError(t, os.WriteFile(path, []byte(`{"postedSlugs":["one","two"],"lastUpdated":"2025-01-01T00:00:00Z"}`), 0644))

	posted, err := ledger.IsPosted("two")
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestLedger_manySlugs(t *testing.T) {
	ledger, _ := newTestLedger(t)

	slugs := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		slugs = append(slugs, fmt.Sprintf("%s-%s-%d", gofakeit.Adjective(), gofakeit.Noun(), i))
	}

	// mark every other one as already posted
	for i := 0; i < len(slugs); i += 2 {
		require.NoError(t, ledger.MarkPosted(slugs[i]))
	}

	newSlugs, err := ledger.DiffNew(slugs)
	require.NoError(t, err)
	require.Len(t, newSlugs, 25)
	for i, slug := range newSlugs {
		assert.Equal(t, slugs[i*2+1], slug)
	}
}
