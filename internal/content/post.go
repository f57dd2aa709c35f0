package content

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrInvalidFrontmatter = errors.New("invalid front matter")
)

// readingTimeWordsPerMinute is the usual average adult reading speed.
const readingTimeWordsPerMinute = 200

type Frontmatter struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	PublishedAt time.Time  `json:"published_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Tags        []string   `json:"tags"`
	Image       string     `json:"image,omitempty"`
	Draft       bool       `json:"draft"`
}

type Post struct {
	Slug        string      `json:"slug"`
	Frontmatter Frontmatter `json:"frontmatter"`
	Content     string      `json:"content"`
	ReadingTime string      `json:"reading_time"`
}

// PostMeta is the Post without its content body - the shape exposed
// to listings, search and relatedness
type PostMeta struct {
	Slug        string      `json:"slug"`
	Frontmatter Frontmatter `json:"frontmatter"`
	ReadingTime string      `json:"reading_time"`
}

func (p *Post) Meta() PostMeta {
	return PostMeta{
		Slug:        p.Slug,
		Frontmatter: p.Frontmatter,
		ReadingTime: p.ReadingTime,
	}
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// rawFrontmatter is the YAML shape as authored in the content files;
// dates come in as strings and get validated into time.Time
type rawFrontmatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	PublishedAt string   `yaml:"publishedAt"`
	UpdatedAt   string   `yaml:"updatedAt"`
	Tags        []string `yaml:"tags"`
	Image       string   `yaml:"image"`
	Draft       bool     `yaml:"draft"`
}

// splitFrontmatter separates the fenced YAML metadata block from the body.
// Tolerant of CRLF line endings and whitespace before the opening fence.
func splitFrontmatter(data []byte) (frontmatter, body []byte, err error) {
	s := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(s, []byte("---")) {
		return nil, nil, fmt.Errorf("%w: missing front matter block", ErrInvalidFrontmatter)
	}
	s = s[len("---"):]
	if bytes.HasPrefix(s, []byte("\r\n")) {
		s = s[2:]
	} else if bytes.HasPrefix(s, []byte("\n")) {
		s = s[1:]
	}

	idx := bytes.Index(s, []byte("\n---"))
	fenceLen := len("\n---")
	if idx < 0 {
		idx = bytes.Index(s, []byte("\r\n---"))
		fenceLen = len("\r\n---")
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: front matter block not closed", ErrInvalidFrontmatter)
		}
	}

	frontmatter = s[:idx]
	body = s[idx+fenceLen:]
	body = bytes.TrimLeft(body, "\r\n")
	return frontmatter, body, nil
}

func parseFrontmatter(data []byte) (Frontmatter, error) {
	var raw rawFrontmatter
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Frontmatter{}, fmt.Errorf("%w: %s", ErrInvalidFrontmatter, err)
	}

	if strings.TrimSpace(raw.Title) == "" {
		return Frontmatter{}, fmt.Errorf("%w: title empty", ErrInvalidFrontmatter)
	}

	publishedAt, err := parseDate(raw.PublishedAt)
	if err != nil {
		return Frontmatter{}, fmt.Errorf("%w: publishedAt: %s", ErrInvalidFrontmatter, err)
	}

	fm := Frontmatter{
		Title:       raw.Title,
		Description: raw.Description,
		PublishedAt: publishedAt,
		Tags:        raw.Tags,
		Image:       raw.Image,
		Draft:       raw.Draft,
	}

	if raw.UpdatedAt != "" {
		updatedAt, err := parseDate(raw.UpdatedAt)
		if err != nil {
			return Frontmatter{}, fmt.Errorf("%w: updatedAt: %s", ErrInvalidFrontmatter, err)
		}
		fm.UpdatedAt = &updatedAt
	}

	return fm, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("date empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", value)
}

// EstimateReadingTime returns a human readable reading duration for the
// given body, e.g. "5 min read"
func EstimateReadingTime(body string) string {
	words := len(strings.Fields(body))
	minutes := int(math.Ceil(float64(words) / readingTimeWordsPerMinute))
	return fmt.Sprintf("%d min read", minutes)
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
