package api_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/api/apitest"
)

func TestIDAcceptsNumbersStringsAndNull(t *testing.T) {
	tests := []struct {
		in   string
		want api.ID
	}{
		{`{"repo_id": 42}`, "42"},
		{`{"repo_id": "42"}`, "42"},
		{`{"repo_id": null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var resp api.StatusResponse
		if err := json.Unmarshal([]byte(tt.in), &resp); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if resp.RepoID != tt.want {
			t.Errorf("%s: RepoID = %q, want %q", tt.in, resp.RepoID, tt.want)
		}
	}
}

func TestTimestampAcceptsNaiveDatetimes(t *testing.T) {
	var repo api.RepoInfo
	body := `{"id": 1, "repo_url": "https://github.com/a/b", "collection_name": "a_b", "created_at": "2025-03-04T05:06:07.123456"}`
	if err := json.Unmarshal([]byte(body), &repo); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if repo.CreatedAt.Year() != 2025 || repo.CreatedAt.Month() != 3 || repo.CreatedAt.Second() != 7 {
		t.Errorf("CreatedAt = %v", repo.CreatedAt)
	}
	if repo.DisplayName() != "https://github.com/a/b" {
		t.Errorf("DisplayName() = %q", repo.DisplayName())
	}
}

func TestClientRepoLifecycle(t *testing.T) {
	backend := apitest.New(t)
	backend.AddRepo(api.RepoInfo{ID: "7", RepoURL: "https://github.com/microsoft/WSL", CollectionName: "microsoft_WSL"})
	client := backend.Client()
	ctx := context.Background()

	if err := client.Exists(ctx, "7"); err != nil {
		t.Fatalf("Exists(7): %v", err)
	}

	repo, err := client.GetRepo(ctx, "7")
	if err != nil {
		t.Fatalf("GetRepo: %v", err)
	}
	if repo.CollectionName != "microsoft_WSL" {
		t.Errorf("CollectionName = %q", repo.CollectionName)
	}

	repos, err := client.ListRepos(ctx)
	if err != nil {
		t.Fatalf("ListRepos: %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("expected 1 repo, got %d", len(repos))
	}

	if err := client.DeleteRepo(ctx, "7"); err != nil {
		t.Fatalf("DeleteRepo: %v", err)
	}

	err = client.Exists(ctx, "7")
	if !api.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestClientSetupAndStatus(t *testing.T) {
	backend := apitest.New(t)
	backend.QueueStatus(api.StatusResponse{Status: "ready", RepoID: "3"})
	client := backend.Client()
	ctx := context.Background()

	if err := client.Setup(ctx, "https://github.com/a/b"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if got := backend.SetupURLs(); len(got) != 1 || got[0] != "https://github.com/a/b" {
		t.Errorf("setup urls = %v", got)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != "ready" || status.RepoID != "3" {
		t.Errorf("status = %+v", status)
	}
}

func TestClientStatusErrorCarriesDetail(t *testing.T) {
	backend := apitest.New(t)
	backend.FailSetup(true)

	err := backend.Client().Setup(context.Background(), "https://github.com/a/b")
	se, ok := err.(*api.StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T (%v)", err, err)
	}
	if se.Code != http.StatusInternalServerError || se.Detail != "setup failed" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestClientDiagramChatAndPodcast(t *testing.T) {
	backend := apitest.New(t)
	backend.AddRepo(api.RepoInfo{ID: "1", RepoURL: "https://github.com/a/b"})
	backend.SetDiagram("1", "graph TD;A-->B")
	backend.SetPodcast("1", "Welcome to the show.")
	client := backend.Client()
	ctx := context.Background()

	script, err := client.Diagram(ctx, "1")
	if err != nil || script != "graph TD;A-->B" {
		t.Errorf("Diagram = %q, %v", script, err)
	}

	answer, err := client.Chat(ctx, "1", "what is this?")
	if err != nil || answer != "You asked: what is this?" {
		t.Errorf("Chat = %q, %v", answer, err)
	}

	history, err := client.ChatHistory(ctx, "1")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 1 || history[0].Query != "what is this?" {
		t.Errorf("history = %+v", history)
	}

	podcast, err := client.Podcast(ctx, "1")
	if err != nil || podcast != "Welcome to the show." {
		t.Errorf("Podcast = %q, %v", podcast, err)
	}
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := api.NewClient(url, nil)
	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected transport error against a closed server")
	}
}

func TestClientReusesConnectionsWithoutResponseBody(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"repo_url":"https://github.com/a/b","collection_name":"a_b"}`))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	client := api.NewClient(srv.URL+"/api", srv.Client())
	for i := 0; i < 3; i++ {
		if err := client.Exists(context.Background(), "1"); err != nil {
			t.Fatalf("Exists: %v", err)
		}
	}
	if n := conns.Load(); n != 1 {
		t.Errorf("opened %d connections, want 1", n)
	}
}
