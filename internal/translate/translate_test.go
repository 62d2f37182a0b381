package translate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperGenerator "translates" by upper-casing every value of the request object.
type upperGenerator struct {
	wrap   func(string) string
	drop   string
	prompt string
	calls  int
}

func (g *upperGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	start := strings.LastIndex(prompt, "\n\n") + 2
	var fields map[string]string
	if err := json.Unmarshal([]byte(prompt[start:]), &fields); err != nil {
		return "", err
	}
	for k, v := range fields {
		fields[k] = strings.ToUpper(v)
	}
	delete(fields, g.drop)
	out, _ := json.Marshal(fields)
	if g.wrap != nil {
		return g.wrap(string(out)), nil
	}
	return string(out), nil
}

type staticGenerator struct {
	reply string
	err   error
}

func (g staticGenerator) Generate(context.Context, string) (string, error) {
	return g.reply, g.err
}

const feedPayload = `{
	"success": true,
	"posts": [
		{"id": "p-1", "title": "hello", "content": "first post", "upvotes": 12345678901234567890, "created_at": "2026-01-02T03:04:05Z"},
		{"id": "p-2", "title": "again", "author": {"name": "molty", "description": "keep me"}}
	]
}`

func TestTranslateTextFieldsOnly(t *testing.T) {
	gen := &upperGenerator{}
	tr := New(gen)

	out, err := tr.Translate(context.Background(), json.RawMessage(feedPayload), "French")
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"success": true,
		"posts": [
			{"id": "p-1", "title": "HELLO", "content": "FIRST POST", "upvotes": 12345678901234567890, "created_at": "2026-01-02T03:04:05Z"},
			{"id": "p-2", "title": "AGAIN", "author": {"name": "molty", "description": "keep me"}}
		]
	}`, string(out))
	assert.Contains(t, string(out), "12345678901234567890", "numbers keep their exact representation")
	assert.Contains(t, gen.prompt, "French")
	assert.NotContains(t, gen.prompt, "p-1", "identifiers are never sent to the provider")
	assert.NotContains(t, gen.prompt, "2026-01-02", "timestamps are never sent to the provider")
}

func TestTranslateStripsFenceOnce(t *testing.T) {
	gen := &upperGenerator{wrap: func(s string) string { return "```json\n" + s + "\n```" }}
	tr := New(gen)

	out, err := tr.Translate(context.Background(), json.RawMessage(`{"title":"hi"}`), "de")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"HI"}`, string(out))
}

func TestTranslateUnparseableFails(t *testing.T) {
	tr := New(staticGenerator{reply: "Sure! Here is your translation: bonjour"})

	out, err := tr.Translate(context.Background(), json.RawMessage(`{"title":"hi"}`), "fr")
	require.ErrorIs(t, err, ErrUnparseable)
	assert.Nil(t, out)
}

func TestTranslateDoubleWrappedFails(t *testing.T) {
	reply := "```\n```json\n{\"/title\":\"salut\"}\n```\n```"
	tr := New(staticGenerator{reply: reply})

	_, err := tr.Translate(context.Background(), json.RawMessage(`{"title":"hi"}`), "fr")
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestTranslateMissingFieldFails(t *testing.T) {
	tr := New(&upperGenerator{drop: "/posts/0/content"})

	out, err := tr.Translate(context.Background(), json.RawMessage(feedPayload), "es")
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Nil(t, out)
}

func TestTranslateProviderError(t *testing.T) {
	tr := New(staticGenerator{err: errors.New("quota")})

	_, err := tr.Translate(context.Background(), json.RawMessage(`{"content":"x"}`), "ja")
	require.Error(t, err)
}

func TestTranslateWithoutTextReturnsInput(t *testing.T) {
	gen := &upperGenerator{}
	tr := New(gen)
	in := json.RawMessage(`{"id":"x","count":3}`)

	out, err := tr.Translate(context.Background(), in, "it")
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
	assert.Zero(t, gen.calls)
}

func TestTranslateInvalidPayload(t *testing.T) {
	tr := New(&upperGenerator{})

	_, err := tr.Translate(context.Background(), json.RawMessage(`{"title":`), "it")
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTranslateWithoutProvider(t *testing.T) {
	_, err := New(nil).Translate(context.Background(), json.RawMessage(`{"title":"a"}`), "it")
	require.Error(t, err)
}

func TestPointerEscaping(t *testing.T) {
	gen := &upperGenerator{}
	tr := New(gen)

	out, err := tr.Translate(context.Background(), json.RawMessage(`{"a/b":{"title":"x"},"c~d":{"body":"y"}}`), "fr")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a/b":{"title":"X"},"c~d":{"body":"Y"}}`, string(out))
	assert.Contains(t, gen.prompt, `"/a~1b/title"`)
	assert.Contains(t, gen.prompt, `"/c~0d/body"`)
}
