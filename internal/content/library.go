// Package content supplies posts for the auto-poster, generated or from a static library.
package content

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var embeddedLibrary []byte

// Item is one publishable post. Its JSON form is the Moltbook create-post body.
type Item struct {
	Submolt string `json:"submolt" yaml:"submolt"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
	// Generated is set for items produced by a Generator.
	Generated bool `json:"-" yaml:"-"`
}

// Library is an immutable list of ready-made posts.
type Library struct {
	items []Item
}

// DefaultLibrary returns the embedded library.
func DefaultLibrary() (*Library, error) {
	return ParseLibrary(embeddedLibrary)
}

// LoadLibrary reads a YAML library from path, or the embedded one when path is empty.
func LoadLibrary(path string) (*Library, error) {
	if path == "" {
		return DefaultLibrary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content library: %w", err)
	}
	return ParseLibrary(data)
}

// ParseLibrary decodes a YAML sequence of items.
func ParseLibrary(data []byte) (*Library, error) {
	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse content library: %w", err)
	}
	for i, it := range items {
		if it.Submolt == "" || it.Title == "" || it.Content == "" {
			return nil, fmt.Errorf("content library item %d: submolt, title and content are required", i)
		}
	}
	return NewLibrary(items), nil
}

// NewLibrary copies items into a Library.
func NewLibrary(items []Item) *Library {
	cp := make([]Item, len(items))
	copy(cp, items)
	return &Library{items: cp}
}

// Len returns the number of items.
func (l *Library) Len() int {
	return len(l.items)
}

// Items returns a copy of the library contents.
func (l *Library) Items() []Item {
	cp := make([]Item, len(l.items))
	copy(cp, l.items)
	return cp
}

// Contains reports whether it is a verbatim library member.
func (l *Library) Contains(it Item) bool {
	for _, candidate := range l.items {
		if candidate == it {
			return true
		}
	}
	return false
}

// Categories returns the distinct submolts in first-seen order.
func (l *Library) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range l.items {
		if _, ok := seen[it.Submolt]; ok {
			continue
		}
		seen[it.Submolt] = struct{}{}
		out = append(out, it.Submolt)
	}
	return out
}
