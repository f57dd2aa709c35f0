package content

import (
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// DefaultRelatedLimit - how many related posts to return when no explicit
// limit is given
const DefaultRelatedLimit = 3

type postRepo interface {
	ReadPost(slug string) (*Post, error)
	ListSlugs() ([]string, error)
}

var _ postRepo = (*Repo)(nil)

// Catalog is the filtered, sorted view over the content repo. Draft
// visibility is an explicit construction-time decision, not ambient
// process state.
type Catalog struct {
	repo          postRepo
	includeDrafts bool
}

func NewCatalog(repo postRepo, includeDrafts bool) *Catalog {
	return &Catalog{
		repo:          repo,
		includeDrafts: includeDrafts,
	}
}

// ListPosts returns all visible posts sorted by publish date, newest first.
// Posts with equal publish dates are ordered by slug, so the ordering is
// fully deterministic regardless of directory enumeration order.
func (c *Catalog) ListPosts() ([]PostMeta, error) {
	slugs, err := c.repo.ListSlugs()
	if err != nil {
		return nil, fmt.Errorf("list slugs: %w", err)
	}

	posts := make([]PostMeta, 0, len(slugs))
	for _, slug := range slugs {
		post, err := c.repo.ReadPost(slug)
		if errors.Is(err, ErrPostNotFound) {
			// listing and reading are two filesystem snapshots, the file
			// can be gone in between
			continue
		}
		if err != nil {
			log.Errorf("catalog: skipping unreadable post %q: %s", slug, err)
			continue
		}
		if !c.includeDrafts && post.Frontmatter.Draft {
			continue
		}
		posts = append(posts, post.Meta())
	}

	sort.SliceStable(posts, func(i, j int) bool {
		pi := posts[i].Frontmatter.PublishedAt
		pj := posts[j].Frontmatter.PublishedAt
		if pi.Equal(pj) {
			return posts[i].Slug < posts[j].Slug
		}
		return pi.After(pj)
	})

	return posts, nil
}

// ListByTag returns the visible posts carrying the given tag, matched
// case-insensitively, in the same order as ListPosts
func (c *Catalog) ListByTag(tag string) ([]PostMeta, error) {
	posts, err := c.ListPosts()
	if err != nil {
		return nil, err
	}

	wanted := normalizeTag(tag)
	tagged := make([]PostMeta, 0)
	for _, post := range posts {
		for _, t := range post.Frontmatter.Tags {
			if normalizeTag(t) == wanted {
				tagged = append(tagged, post)
				break
			}
		}
	}
	return tagged, nil
}

// ListTags aggregates lowercase-normalized tag counts over all visible
// posts, most used first; equal counts are ordered alphabetically
func (c *Catalog) ListTags() ([]TagCount, error) {
	posts, err := c.ListPosts()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, post := range posts {
		for _, tag := range post.Frontmatter.Tags {
			counts[normalizeTag(tag)]++
		}
	}

	tags := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count == tags[j].Count {
			return tags[i].Tag < tags[j].Tag
		}
		return tags[i].Count > tags[j].Count
	})

	return tags, nil
}

// RelatedTo scores all other visible posts by the number of tags shared
// with the anchor post and returns the top scoring ones. The anchor is
// resolved directly via the repo, so drafts can have related posts too.
// Equal scores keep the catalog's date-descending order.
func (c *Catalog) RelatedTo(slug string, limit int) ([]PostMeta, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	anchor, err := c.repo.ReadPost(slug)
	if errors.Is(err, ErrPostNotFound) {
		return []PostMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read anchor post: %w", err)
	}

	anchorTags := make(map[string]bool, len(anchor.Frontmatter.Tags))
	for _, tag := range anchor.Frontmatter.Tags {
		anchorTags[normalizeTag(tag)] = true
	}

	posts, err := c.ListPosts()
	if err != nil {
		return nil, err
	}

	type scoredPost struct {
		post  PostMeta
		score int
	}
	scored := make([]scoredPost, 0, len(posts))
	for _, post := range posts {
		if post.Slug == slug {
			continue
		}
		score := 0
		for _, tag := range post.Frontmatter.Tags {
			if anchorTags[normalizeTag(tag)] {
				score++
			}
		}
		if score == 0 {
			continue
		}
		scored = append(scored, scoredPost{post: post, score: score})
	}

	// stable: ties keep the date-descending catalog order
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	related := make([]PostMeta, 0, len(scored))
	for _, s := range scored {
		related = append(related, s.post)
	}
	return related, nil
}
