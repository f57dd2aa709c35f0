package announce

import (
	"context"
	"errors"
	"fmt"

	"github.com/windybank/windybanknet/internal/bluesky"
	"github.com/windybank/windybanknet/internal/content"
	"github.com/windybank/windybanknet/internal/telemetry/metrics"
	"github.com/windybank/windybanknet/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Result is the outcome of one post's announcement attempt
type Result struct {
	Slug    string `json:"slug"`
	Success bool   `json:"success"`
	URI     string `json:"uri,omitempty"`
	Error   string `json:"error,omitempty"`
}

type postCatalog interface {
	ListPosts() ([]content.PostMeta, error)
}

type postReader interface {
	ReadPost(slug string) (*content.Post, error)
}

type publicationLedger interface {
	DiffNew(candidates []string) ([]string, error)
	MarkPosted(slug string) error
}

type announceClient interface {
	Announce(ctx context.Context, params bluesky.PostParams) (string, error)
}

var _ announceClient = (*bluesky.Client)(nil)

// Announcer reconciles the post catalog against the publication ledger and
// announces each not-yet-posted, non-draft post. Posts are processed
// strictly one at a time, and the ledger is persisted after every success,
// so a crash mid-run leaves exactly the succeeded posts marked.
type Announcer struct {
	catalog        postCatalog
	reader         postReader
	ledger         publicationLedger
	client         announceClient
	siteBaseURL    string
	metricsManager *metrics.Manager
}

type NewAnnouncerParams struct {
	Catalog        postCatalog
	Reader         postReader
	Ledger         publicationLedger
	Client         announceClient
	SiteBaseURL    string
	MetricsManager *metrics.Manager
}

func NewAnnouncer(params NewAnnouncerParams) *Announcer {
	return &Announcer{
		catalog:        params.Catalog,
		reader:         params.Reader,
		ledger:         params.Ledger,
		client:         params.Client,
		siteBaseURL:    params.SiteBaseURL,
		metricsManager: params.MetricsManager,
	}
}

// Run processes all new posts and returns one result per attempted
// announcement. A single post's delivery failure does not abort the run -
// the post stays unmarked and is retried next time. Only infrastructure
// failures (catalog or ledger unusable) surface as errors.
func (a *Announcer) Run(ctx context.Context) ([]Result, error) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(ctx, "announcer.run")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	posts, err := a.catalog.ListPosts()
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	slugs := make([]string, 0, len(posts))
	for _, post := range posts {
		slugs = append(slugs, post.Slug)
	}

	newSlugs, err := a.ledger.DiffNew(slugs)
	if err != nil {
		return nil, fmt.Errorf("diff new posts: %w", err)
	}
	span.SetAttributes(attribute.Int("posts.new", len(newSlugs)))

	if len(newSlugs) == 0 {
		log.Debugln("announcer: no new posts to share")
		return []Result{}, nil
	}

	results := make([]Result, 0, len(newSlugs))
	for _, slug := range newSlugs {
		post, err := a.reader.ReadPost(slug)
		if err != nil {
			if !errors.Is(err, content.ErrPostNotFound) {
				log.Errorf("announcer: skipping unreadable post %q: %s", slug, err)
			}
			continue
		}
		// drafts must never be announced, no matter how they ended up in
		// the candidate list
		if post.Frontmatter.Draft {
			continue
		}

		uri, err := a.client.Announce(ctx, bluesky.PostParams{
			Title:       post.Frontmatter.Title,
			Description: post.Frontmatter.Description,
			URL:         fmt.Sprintf("%s/blog/%s", a.siteBaseURL, slug),
			Tags:        post.Frontmatter.Tags,
		})
		if err != nil {
			// not marked as posted - retried on the next run
			log.Errorf("announcer: post %q failed: %s", slug, err)
			if a.metricsManager != nil {
				a.metricsManager.CounterAnnounceFailures.Inc()
			}
			results = append(results, Result{
				Slug:  slug,
				Error: errorMessage(err),
			})
			continue
		}

		if err = a.ledger.MarkPosted(slug); err != nil {
			// the ledger being unwritable would re-announce everything on
			// the next run - stop here
			return results, fmt.Errorf("mark %q posted: %w", slug, err)
		}

		log.Infof("announcer: post %q announced: %s", slug, uri)
		if a.metricsManager != nil {
			a.metricsManager.CounterPostsAnnounced.Inc()
		}
		results = append(results, Result{
			Slug:    slug,
			Success: true,
			URI:     uri,
		})
	}

	return results, nil
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "Unknown error"
	}
	return err.Error()
}
