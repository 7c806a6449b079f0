package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is a repository identifier as the backend reports it. The backend
// emits integers, but the front-end treats the value as an opaque token,
// so numbers, strings and null are all accepted.
type ID string

// UnmarshalJSON accepts a JSON number, string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric identifiers as numbers, anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Timestamp parses the naive ISO-8601 datetimes the backend emits as
// well as RFC 3339 values. Naive values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status         string   `json:"status"`
	Message        string   `json:"message,omitempty"`
	RepoID         ID       `json:"repo_id,omitempty"`
	ElapsedSeconds *float64 `json:"elapsed_seconds,omitempty"`
}

// Commit is one entry of a repository's recent activity.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	URL     string `json:"url"`
}

// RepoInfo describes an ingested repository. Only ID, RepoURL,
// CollectionName and CreatedAt are guaranteed; the rest are filled in when
// the backend has GitHub metadata for the repository.
type RepoInfo struct {
	ID             ID        `json:"id"`
	Name           string    `json:"name,omitempty"`
	RepoURL        string    `json:"repo_url"`
	CollectionName string    `json:"collection_name"`
	CreatedAt      Timestamp `json:"created_at"`
	Description    string    `json:"description,omitempty"`
	Stars          *int      `json:"stars,omitempty"`
	Forks          *int      `json:"forks,omitempty"`
	Issues         *int      `json:"issues,omitempty"`
	License        string    `json:"license,omitempty"`
	Owner          string    `json:"owner,omitempty"`
	LastActivity   []Commit  `json:"last_activity,omitempty"`
}

// DisplayName returns the repository name, falling back to its URL.
func (r RepoInfo) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.RepoURL
}

// ChatHistoryItem is one stored question/answer pair.
type ChatHistoryItem struct {
	ID        int64     `json:"id"`
	RepoID    ID        `json:"repo_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp Timestamp `json:"timestamp"`
}

type setupRequest struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type diagramResponse struct {
	GraphScript string `json:"graph_script"`
}

type podcastResponse struct {
	Script string `json:"script"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
