package content

import "time"

// RepoTestApi is an in-memory stand-in for the file backed Repo,
// used by catalog and handler tests
type RepoTestApi struct {
	slugs    []string
	posts    map[string]*Post
	readErrs map[string]error
	listErr  error
}

func NewRepoTestApi() *RepoTestApi {
	return &RepoTestApi{
		posts:    make(map[string]*Post),
		readErrs: make(map[string]error),
	}
}

func (api *RepoTestApi) AddPost(post *Post) {
	api.slugs = append(api.slugs, post.Slug)
	api.posts[post.Slug] = post
}

func (api *RepoTestApi) SetReadError(slug string, err error) {
	api.slugs = append(api.slugs, slug)
	api.readErrs[slug] = err
}

func (api *RepoTestApi) ReadPost(slug string) (*Post, error) {
	if err, ok := api.readErrs[slug]; ok {
		return nil, err
	}
	post, ok := api.posts[slug]
	if !ok {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (api *RepoTestApi) ListSlugs() ([]string, error) {
	if api.listErr != nil {
		return nil, api.listErr
	}
	return api.slugs, nil
}

func newTestPost(slug, title string, publishedAt time.Time, draft bool, tags ...string) *Post {
	content := "body of " + slug
	return &Post{
		Slug: slug,
		Frontmatter: Frontmatter{
			Title:       title,
			Description: "description of " + slug,
			PublishedAt: publishedAt,
			Tags:        tags,
			Draft:       draft,
		},
		Content:     content,
		ReadingTime: EstimateReadingTime(content),
	}
}
