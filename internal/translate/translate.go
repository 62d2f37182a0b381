// Package translate localizes the human-readable fields of arbitrary JSON payloads.
//
// Only string values under the keys in textKeys are sent to the provider, so
// identifiers, timestamps and every other field come back byte-identical.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ashureev/moltdash/internal/content"
)

var (
	// ErrUnparseable means the provider reply was not a JSON object, even after unwrapping.
	ErrUnparseable = errors.New("translation response is not valid JSON")
	// ErrIncomplete means the reply did not return every requested field as a string.
	ErrIncomplete = errors.New("translation response is missing fields")
	// ErrInvalidPayload means the input was not a JSON document.
	ErrInvalidPayload = errors.New("payload is not valid JSON")
)

var textKeys = map[string]bool{
	"title":   true,
	"content": true,
	"body":    true,
}

const promptTemplate = `Translate every value of the following JSON object into %s.
Keep every key exactly as it is. Do not add, remove or rename keys.
Return only the JSON object, with no commentary.

%s`

// Translator sends text fields to a generation provider.
type Translator struct {
	generator content.Generator
}

// New creates a Translator backed by generator.
func New(generator content.Generator) *Translator {
	return &Translator{generator: generator}
}

// Translate returns payload with its title/content/body strings translated into targetLang.
// The result is all-or-nothing: any provider or parse failure returns an error and no payload.
func (t *Translator) Translate(ctx context.Context, payload json.RawMessage, targetLang string) (json.RawMessage, error) {
	if t.generator == nil {
		return nil, errors.New("translation provider not configured")
	}

	doc, err := decode(payload)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	collect(doc, "", "", fields)
	if len(fields) == 0 {
		return payload, nil
	}

	request, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode translation request: %w", err)
	}

	reply, err := t.generator.Generate(ctx, fmt.Sprintf(promptTemplate, targetLang, request))
	if err != nil {
		return nil, fmt.Errorf("translation provider: %w", err)
	}

	translated, err := parseReply(reply)
	if err != nil {
		return nil, err
	}

	var missing []string
	for ptr := range fields {
		if _, ok := translated[ptr]; !ok {
			missing = append(missing, ptr)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	doc = apply(doc, "", "", translated)

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode translated payload: %w", err)
	}
	return out, nil
}

func decode(payload json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return nil, ErrInvalidPayload
	}
	return doc, nil
}

// parseReply decodes the provider reply, unwrapping a code fence at most once.
func parseReply(reply string) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		if err := json.Unmarshal([]byte(content.StripCodeFence(reply)), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// collect records text fields keyed by JSON Pointer.
func collect(node any, ptr, key string, fields map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			collect(child, ptr+"/"+escapePointer(k), k, fields)
		}
	case []any:
		for i, child := range v {
			// Array elements inherit the parent key so "content": ["a","b"] is translated too.
			collect(child, ptr+"/"+strconv.Itoa(i), key, fields)
		}
	case string:
		if textKeys[key] && strings.TrimSpace(v) != "" {
			fields[ptr] = v
		}
	}
}

func apply(node any, ptr, key string, translated map[string]string) any {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			v[k] = apply(child, ptr+"/"+escapePointer(k), k, translated)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = apply(child, ptr+"/"+strconv.Itoa(i), key, translated)
		}
		return v
	case string:
		if s, ok := translated[ptr]; ok && textKeys[key] {
			return s
		}
		return v
	default:
		return v
	}
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}
