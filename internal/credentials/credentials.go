// Package credentials resolves the Moltbook agent identity once at startup.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

const (
	envAPIKey    = "MOLTBOOK_API_KEY"
	envAgentName = "MOLTBOOK_AGENT_NAME"
)

// Source names where credentials were resolved from.
type Source string

const (
	SourceEnv  Source = "env"
	SourceFile Source = "file"
	SourceNone Source = "none"
)

// Credentials is the agent identity attached to every upstream call.
type Credentials struct {
	APIKey    string
	AgentName string
}

// Present reports whether an API key is available.
func (c Credentials) Present() bool {
	return c.APIKey != ""
}

// Result is the outcome of resolution. Credentials is zero when Source is SourceNone.
type Result struct {
	Credentials Credentials
	Source      Source
}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

type fileCredentials struct {
	APIKey    string `json:"api_key"`
	AgentName string `json:"agent_name"`
}

// Resolve walks env then file. A missing or malformed file yields SourceNone.
func Resolve(lookup LookupEnv, path string) Result {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if key, ok := lookup(envAPIKey); ok && key != "" {
		name, _ := lookup(envAgentName)
		return Result{Credentials: Credentials{APIKey: key, AgentName: name}, Source: SourceEnv}
	}

	if path != "" {
		creds, err := readFile(path)
		switch {
		case err == nil && creds.Present():
			return Result{Credentials: creds, Source: SourceFile}
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			slog.Error("Failed to read credentials file", "path", path, "error", err)
		}
	}

	return Result{Source: SourceNone}
}

func readFile(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}
	var fc fileCredentials
	if err := json.Unmarshal(data, &fc); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}
	return Credentials{APIKey: fc.APIKey, AgentName: fc.AgentName}, nil
}
