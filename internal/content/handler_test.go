package content

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, includeDrafts bool) (*mux.Router, *RepoTestApi) {
	t.Helper()
	repo := NewRepoTestApi()
	catalog := NewCatalog(repo, includeDrafts)
	handler := NewHandler(catalog, repo)
	require.NotNil(t, handler)

	r := mux.NewRouter()
	handler.SetupRoutes(r)
	return r, repo
}

func TestHandler_listPosts(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("first", "First", day2, false, "go"))
	repo.AddPost(newTestPost("second", "Second", day3, false))
	repo.AddPost(newTestPost("hidden", "Hidden", day3, true))

	req, err := http.NewRequest("GET", "/blog/posts", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp PostsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "second", resp.Posts[0].Slug)
	assert.Equal(t, "first", resp.Posts[1].Slug)
}

func TestHandler_listPosts_empty(t *testing.T) {
	r, _ := newTestRouter(t, false)

	req, err := http.NewRequest("GET", "/blog/posts", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	// empty collection serializes as [], not null
	assert.JSONEq(t, `{"posts": [], "total": 0}`, rr.Body.String())
}

func TestHandler_getPost(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("hello-world", "Hello World", day1, false, "go"))

	req, err := http.NewRequest("GET", "/blog/post/hello-world", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var post Post
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &post))
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, "Hello World", post.Frontmatter.Title)
	assert.NotEmpty(t, post.Content)
	assert.NotEmpty(t, post.ReadingTime)
}

func TestHandler_getPost_notFound(t *testing.T) {
	r, _ := newTestRouter(t, false)

	req, err := http.NewRequest("GET", "/blog/post/no-such-post", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_related(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("anchor", "Anchor", day3, false, "go", "web"))
	repo.AddPost(newTestPost("related-post", "Related", day1, false, "go"))
	repo.AddPost(newTestPost("unrelated", "Unrelated", day2, false, "cooking"))

	req, err := http.NewRequest("GET", "/blog/post/anchor/related", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp PostsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "related-post", resp.Posts[0].Slug)
}

func TestHandler_related_limit(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("anchor", "Anchor", day3, false, "go"))
	for i := 0; i < 5; i++ {
		slug := fmt.Sprintf("post-%d", i)
		repo.AddPost(newTestPost(slug, slug, day1, false, "go"))
	}

	req, err := http.NewRequest("GET", "/blog/post/anchor/related?limit=2", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp PostsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestHandler_related_invalidLimit(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("anchor", "Anchor", day3, false, "go"))

	for _, limit := range []string{"abc", "0", "-1"} {
		req, err := http.NewRequest("GET", "/blog/post/anchor/related?limit="+limit, nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "limit=%s", limit)
	}
}

func TestHandler_listTags(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("one", "One", day1, false, "go", "web"))
	repo.AddPost(newTestPost("two", "Two", day2, false, "go"))

	req, err := http.NewRequest("GET", "/blog/tags", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp TagsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Tags, 2)
	assert.Equal(t, TagCount{Tag: "go", Count: 2}, resp.Tags[0])
	assert.Equal(t, TagCount{Tag: "web", Count: 1}, resp.Tags[1])
}

func TestHandler_listByTag(t *testing.T) {
	r, repo := newTestRouter(t, false)
	repo.AddPost(newTestPost("go-post", "Go Post", day1, false, "go"))
	repo.AddPost(newTestPost("web-post", "Web Post", day2, false, "web"))

	req, err := http.NewRequest("GET", "/blog/tag/go", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp PostsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "go-post", resp.Posts[0].Slug)
}
