package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Manifest is the persisted record of which posts were already announced
// externally. It is stored as indented JSON so it can be inspected and
// version controlled.
type Manifest struct {
	PostedSlugs []string  `json:"postedSlugs"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (m *Manifest) Contains(slug string) bool {
	for _, s := range m.PostedSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// Ledger reads and writes the manifest file. Every query re-reads the
// backing file, tolerating external edits between operations. Single
// writer assumed - callers must serialize concurrent invocations.
type Ledger struct {
	path string
}

func NewLedger(path string) *Ledger {
	return &Ledger{
		path: path,
	}
}

// Load returns the persisted manifest, or an empty one stamped with the
// current time when no backing file exists yet. No file is created until
// the first Save. A corrupt file is a hard error - there is no safe
// local recovery.
func (l *Ledger) Load() (*Manifest, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{
				PostedSlugs: []string{},
				LastUpdated: time.Now().UTC(),
			}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.PostedSlugs == nil {
		m.PostedSlugs = []string{}
	}
	return &m, nil
}

// Save stamps lastUpdated and persists the whole manifest
func (l *Ledger) Save(m *Manifest) error {
	m.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (l *Ledger) IsPosted(slug string) (bool, error) {
	m, err := l.Load()
	if err != nil {
		return false, err
	}
	return m.Contains(slug), nil
}

// MarkPosted records the slug as announced. Marking an already recorded
// slug is a no-op: no write happens, so the lastUpdated timestamp does
// not churn.
func (l *Ledger) MarkPosted(slug string) error {
	m, err := l.Load()
	if err != nil {
		return err
	}
	if m.Contains(slug) {
		return nil
	}
	m.PostedSlugs = append(m.PostedSlugs, slug)
	return l.Save(m)
}

// DiffNew returns the candidates not yet recorded in the manifest,
// preserving the input order
func (l *Ledger) DiffNew(candidates []string) ([]string, error) {
	m, err := l.Load()
	if err != nil {
		return nil, err
	}

	newSlugs := make([]string, 0, len(candidates))
	for _, slug := range candidates {
		if !m.Contains(slug) {
			newSlugs = append(newSlugs, slug)
		}
	}
	return newSlugs, nil
}
