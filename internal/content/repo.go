package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ContentFileExtension - only files with this extension are treated as posts
const ContentFileExtension = ".mdx"

// Repo reads posts straight from the content directory. There is no caching:
// every read reflects the current file bytes, so live edits are picked up
// without a process restart.
type Repo struct {
	dir string
}

func NewRepo(dir string) *Repo {
	return &Repo{
		dir: dir,
	}
}

// ReadPost returns the full post for the given slug, or ErrPostNotFound
// when no backing file exists
func (r *Repo) ReadPost(slug string) (*Post, error) {
	path := filepath.Join(r.dir, slug+ContentFileExtension)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("read post %q: %w", slug, err)
	}

	fmBytes, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("post %q: %w", slug, err)
	}

	frontmatter, err := parseFrontmatter(fmBytes)
	if err != nil {
		return nil, fmt.Errorf("post %q: %w", slug, err)
	}

	content := string(body)
	return &Post{
		Slug:        slug,
		Frontmatter: frontmatter,
		Content:     content,
		ReadingTime: EstimateReadingTime(content),
	}, nil
}

// ListSlugs enumerates the slugs of all content files, in directory
// enumeration order - sorting is the catalog's job
func (r *Repo) ListSlugs() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("content dir %q does not exist, no posts", r.dir)
			return nil, nil
		}
		return nil, fmt.Errorf("list content dir: %w", err)
	}

	var slugs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ContentFileExtension) {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, ContentFileExtension))
	}
	return slugs, nil
}
