package search

import (
	"fmt"
	"strings"

	"github.com/windybank/windybanknet/internal/content"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// field boosts: title matches rank above description matches, which rank
// above tag matches
const (
	titleBoost       = 2.0
	descriptionBoost = 1.5
	tagsBoost        = 1.0

	// one edit of typo tolerance per query term
	queryFuzziness = 1
)

// indexedPost is the document shape stored in the bleve index
type indexedPost struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Index is an in-memory fuzzy search index over a fixed post collection.
// It is cheap to build at blog scale, so it is rebuilt wholesale whenever
// the collection changes instead of being updated incrementally.
type Index struct {
	idx   bleve.Index
	posts map[string]content.PostMeta
}

func BuildIndex(posts []content.PostMeta) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("new mem index: %w", err)
	}

	bySlug := make(map[string]content.PostMeta, len(posts))

	batch := idx.NewBatch()
	for _, post := range posts {
		bySlug[post.Slug] = post
		doc := indexedPost{
			Title:       post.Frontmatter.Title,
			Description: post.Frontmatter.Description,
			Tags:        post.Frontmatter.Tags,
		}
		if err := batch.Index(post.Slug, doc); err != nil {
			return nil, fmt.Errorf("batch index %q: %w", post.Slug, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	return &Index{
		idx:   idx,
		posts: bySlug,
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Search returns the matching posts, best match first. An empty or
// whitespace-only query yields no results - never "all posts". A query
// matching nothing yields an empty result, not an error.
func (i *Index) Search(query string) ([]content.PostMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []content.PostMeta{}, nil
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(titleBoost)
	titleQuery.SetFuzziness(queryFuzziness)

	descriptionQuery := bleve.NewMatchQuery(query)
	descriptionQuery.SetField("description")
	descriptionQuery.SetBoost(descriptionBoost)
	descriptionQuery.SetFuzziness(queryFuzziness)

	tagsQuery := bleve.NewMatchQuery(query)
	tagsQuery.SetField("tags")
	tagsQuery.SetBoost(tagsBoost)
	tagsQuery.SetFuzziness(queryFuzziness)

	disjunction := bleve.NewDisjunctionQuery(titleQuery, descriptionQuery, tagsQuery)

	request := bleve.NewSearchRequestOptions(disjunction, len(i.posts), 0, false)
	result, err := i.idx.Search(request)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]content.PostMeta, 0, len(result.Hits))
	for _, hit := range result.Hits {
		post, ok := i.posts[hit.ID]
		if !ok {
			continue
		}
		matches = append(matches, post)
	}
	return matches, nil
}

func (i *Index) Close() error {
	return i.idx.Close()
}
