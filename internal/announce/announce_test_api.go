package announce

import (
	"context"
	"fmt"

	"github.com/windybank/windybanknet/internal/bluesky"
	"github.com/windybank/windybanknet/internal/content"

	"github.com/go-redis/redis_rate/v9"
)

// test stand-ins for the announcer collaborators

type catalogTestApi struct {
	posts   []content.PostMeta
	listErr error
}

func (api *catalogTestApi) ListPosts() ([]content.PostMeta, error) {
	if api.listErr != nil {
		return nil, api.listErr
	}
	return api.posts, nil
}

type readerTestApi struct {
	posts    map[string]*content.Post
	readErrs map[string]error
}

func newReaderTestApi() *readerTestApi {
	return &readerTestApi{
		posts:    make(map[string]*content.Post),
		readErrs: make(map[string]error),
	}
}

func (api *readerTestApi) ReadPost(slug string) (*content.Post, error) {
	if err, ok := api.readErrs[slug]; ok {
		return nil, err
	}
	post, ok := api.posts[slug]
	if !ok {
		return nil, content.ErrPostNotFound
	}
	return post, nil
}

type ledgerTestApi struct {
	posted  []string
	markErr error
	writes  int
}

func (api *ledgerTestApi) contains(slug string) bool {
	for _, s := range api.posted {
		if s == slug {
			return true
		}
	}
	return false
}

func (api *ledgerTestApi) DiffNew(candidates []string) ([]string, error) {
	newSlugs := make([]string, 0, len(candidates))
	for _, slug := range candidates {
		if !api.contains(slug) {
			newSlugs = append(newSlugs, slug)
		}
	}
	return newSlugs, nil
}

func (api *ledgerTestApi) MarkPosted(slug string) error {
	if api.markErr != nil {
		return api.markErr
	}
	if api.contains(slug) {
		return nil
	}
	api.posted = append(api.posted, slug)
	api.writes++
	return nil
}

type announceClientTestApi struct {
	announced []bluesky.PostParams
	failures  map[string]error // keyed by post title
}

func (api *announceClientTestApi) Announce(_ context.Context, params bluesky.PostParams) (string, error) {
	if err, ok := api.failures[params.Title]; ok {
		return "", err
	}
	api.announced = append(api.announced, params)
	return fmt.Sprintf("at://did:plc:test/app.bsky.feed.post/%d", len(api.announced)), nil
}

type runnerTestApi struct {
	results []Result
	runErr  error
	calls   int
}

func (api *runnerTestApi) Run(context.Context) ([]Result, error) {
	api.calls++
	if api.runErr != nil {
		return nil, api.runErr
	}
	return api.results, nil
}

// rateLimiterTestApi lets everything through unless closed
type rateLimiterTestApi struct {
	blocked bool
}

func (api *rateLimiterTestApi) Allow(_ context.Context, _ string, _ redis_rate.Limit) (*redis_rate.Result, error) {
	if api.blocked {
		return &redis_rate.Result{Allowed: 0}, nil
	}
	return &redis_rate.Result{Allowed: 1}, nil
}
