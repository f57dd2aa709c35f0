package announce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/windybank/windybanknet/internal/content"
	"github.com/windybank/windybanknet/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnnouncePost(slug, title string, draft bool, tags ...string) *content.Post {
	return &content.Post{
		Slug: slug,
		Frontmatter: content.Frontmatter{
			Title:       title,
			Description: "description of " + slug,
			PublishedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Tags:        tags,
			Draft:       draft,
		},
		Content:     "body",
		ReadingTime: "1 min read",
	}
}

type announcerTestSetup struct {
	catalog   *catalogTestApi
	reader    *readerTestApi
	ledger    *ledgerTestApi
	client    *announceClientTestApi
	announcer *Announcer
	metrics   *metrics.Manager
}

func newAnnouncerTestSetup() *announcerTestSetup {
	setup := &announcerTestSetup{
		catalog: &catalogTestApi{},
		reader:  newReaderTestApi(),
		ledger:  &ledgerTestApi{},
		client:  &announceClientTestApi{failures: make(map[string]error)},
		metrics: metrics.NewTestManager(),
	}
	setup.announcer = NewAnnouncer(NewAnnouncerParams{
		Catalog:        setup.catalog,
		Reader:         setup.reader,
		Ledger:         setup.ledger,
		Client:         setup.client,
		SiteBaseURL:    "https://windybank.net",
		MetricsManager: setup.metrics,
	})
	return setup
}

func (setup *announcerTestSetup) addPost(post *content.Post) {
	setup.catalog.posts = append(setup.catalog.posts, post.Meta())
	setup.reader.posts[post.Slug] = post
}

func TestAnnouncer_Run_nothingToDo(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.addPost(newAnnouncePost("already-shared", "Already Shared", false))
	setup.ledger.posted = []string{"already-shared"}

	results, err := setup.announcer.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, setup.client.announced)
	assert.Zero(t, setup.ledger.writes)
}

func TestAnnouncer_Run_announcesNewPosts(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.addPost(newAnnouncePost("hello-world", "Hello World", false, "go", "web"))

	results, err := setup.announcer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello-world", results[0].Slug)
	assert.True(t, results[0].Success)
	assert.NotEmpty(t, results[0].URI)
	assert.Empty(t, results[0].Error)

	require.Len(t, setup.client.announced, 1)
	announced := setup.client.announced[0]
	assert.Equal(t, "Hello World", announced.Title)
	assert.Equal(t, "description of hello-world", announced.Description)
	assert.Equal(t, "https://windybank.net/blog/hello-world", announced.URL)
	assert.Equal(t, []string{"go", "web"}, announced.Tags)

	assert.Equal(t, []string{"hello-world"}, setup.ledger.posted)
	assert.Equal(t, float64(1), testutil.ToFloat64(setup.metrics.CounterPostsAnnounced))
}

func TestAnnouncer_Run_partialFailure(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.addPost(newAnnouncePost("first", "First", false))
	setup.addPost(newAnnouncePost("second", "Second", false))
	setup.addPost(newAnnouncePost("third", "Third", false))
	setup.client.failures["Second"] = errors.New("bluesky timeout")

	results, err := setup.announcer.Run(context.Background())
	require.NoError(t, err)

	// one failed delivery does not abort the batch
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "bluesky timeout")
	assert.Empty(t, results[1].URI)
	assert.True(t, results[2].Success)

	// only the successes are recorded, the failed one is retried next run
	assert.Equal(t, []string{"first", "third"}, setup.ledger.posted)
	assert.Equal(t, float64(2), testutil.ToFloat64(setup.metrics.CounterPostsAnnounced))
	assert.Equal(t, float64(1), testutil.ToFloat64(setup.metrics.CounterAnnounceFailures))
}

func TestAnnouncer_Run_skipsDrafts(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.addPost(newAnnouncePost("published", "Published", false))
	// a draft slipping into the candidate list must still not go out
	setup.addPost(newAnnouncePost("sneaky-draft", "Sneaky Draft", true))

	results, err := setup.announcer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "published", results[0].Slug)

	require.Len(t, setup.client.announced, 1)
	assert.Equal(t, "Published", setup.client.announced[0].Title)
	assert.False(t, setup.ledger.contains("sneaky-draft"))
}

func TestAnnouncer_Run_skipsVanishedAndUnreadable(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.addPost(newAnnouncePost("good", "Good", false))

	// in the catalog snapshot but gone by re-read time
	setup.catalog.posts = append(setup.catalog.posts, content.PostMeta{Slug: "vanished"})

	// and one that can no longer be parsed
	setup.catalog.posts = append(setup.catalog.posts, content.PostMeta{Slug: "mangled"})
	setup.reader.readErrs["mangled"] = errors.New("invalid front matter")

	results, err := setup.announcer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Slug)
	assert.True(t, results[0].Success)
}

func TestAnnouncer_Run_catalogError(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.catalog.listErr = errors.New("content dir unreadable")

	results, err := setup.announcer.Run(context.Background())
	assert.Nil(t, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content dir unreadable")
}

func TestAnnouncer_Run_ledgerWriteErrorStopsRun(t *testing.T) {
	setup := newAnnouncerTestSetup()
	setup.addPost(newAnnouncePost("first", "First", false))
	setup.addPost(newAnnouncePost("second", "Second", false))
	setup.ledger.markErr = errors.New("manifest file not writable")

	// an unwritable ledger would re-announce everything next run, so
	// the batch stops at the first marking failure
	results, err := setup.announcer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest file not writable")
	assert.Empty(t, results)
	require.Len(t, setup.client.announced, 1)
}
