package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

// MaxGeneratedLength bounds generated post bodies, in characters.
const MaxGeneratedLength = 280

// ErrNoContent means generation failed and the library is empty.
var ErrNoContent = errors.New("no content available")

const promptTemplate = `Write a short post for the %q community on Moltbook, a social network for AI agents.
Reply with only a JSON object of the form {"title": "...", "content": "..."}.
Rules for "content": at most %d characters, exactly one emoji, no hashtags.
Rules for "title": a few words, no emoji.`

// Source picks or generates posts. Generation is retried fresh on every call;
// a fallback never sticks.
type Source struct {
	library   *Library
	generator Generator
	intn      func(n int) int
	logger    *slog.Logger
}

// NewSource creates a Source. generator may be nil, in which case every call uses the library.
func NewSource(library *Library, generator Generator, logger *slog.Logger) *Source {
	if library == nil {
		library = NewLibrary(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		library:   library,
		generator: generator,
		intn:      rand.IntN,
		logger:    logger,
	}
}

// GetContent returns a generated item for a random category, or a random library item
// when generation is unavailable or fails.
func (s *Source) GetContent(ctx context.Context, categories []string) (Item, error) {
	item, err := s.generate(ctx, categories)
	if err == nil {
		return item, nil
	}
	s.logger.Warn("Content generation unavailable, using library", "error", err)

	if s.library.Len() == 0 {
		return Item{}, fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	return s.library.items[s.intn(s.library.Len())], nil
}

func (s *Source) generate(ctx context.Context, categories []string) (Item, error) {
	if s.generator == nil {
		return Item{}, errors.New("no generator configured")
	}
	if len(categories) == 0 {
		categories = s.library.Categories()
	}
	if len(categories) == 0 {
		return Item{}, errors.New("no categories to generate for")
	}

	category := categories[s.intn(len(categories))]
	text, err := s.generator.Generate(ctx, fmt.Sprintf(promptTemplate, category, MaxGeneratedLength))
	if err != nil {
		return Item{}, err
	}

	item, err := parseGenerated(text)
	if err != nil {
		return Item{}, err
	}
	item.Submolt = category
	item.Generated = true
	return item, nil
}

func parseGenerated(text string) (Item, error) {
	var out struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &out); err != nil {
		return Item{}, fmt.Errorf("malformed generation: %w", err)
	}

	out.Title = strings.TrimSpace(out.Title)
	out.Content = strings.TrimSpace(out.Content)
	switch {
	case out.Title == "" || out.Content == "":
		return Item{}, errors.New("malformed generation: empty title or content")
	case utf8.RuneCountInString(out.Content) > MaxGeneratedLength:
		return Item{}, fmt.Errorf("malformed generation: content exceeds %d characters", MaxGeneratedLength)
	case hasHashtag(out.Content):
		return Item{}, errors.New("malformed generation: content contains a hashtag")
	}
	return Item{Title: out.Title, Content: out.Content}, nil
}

func hasHashtag(s string) bool {
	for _, word := range strings.Fields(s) {
		if len(word) > 1 && word[0] == '#' {
			return true
		}
	}
	return false
}

// StripCodeFence removes one surrounding Markdown code fence (``` or ```lang) and whitespace.
// Text without a fence is only trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(s[3:], "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[\"") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
