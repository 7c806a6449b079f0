// Package frontend serves the DevCompass web pages and their live channels.
package frontend

import (
	"context"
	"errors"
	"html/template"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/audio"
	"github.com/ziadkadry99/devcompass/internal/diagrams"
	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/session"
	"github.com/ziadkadry99/devcompass/internal/viewport"
)

// Options holds the collaborators of a Frontend.
type Options struct {
	Client   *api.Client
	Gate     *session.Gate
	Poller   *job.Poller
	History  *job.History // optional
	Renderer diagrams.Renderer
	Speaker  audio.Speaker
	// Entry is the view users are sent back to, "/" if empty.
	Entry string
	// ZoomDuration is the length of viewport animations.
	ZoomDuration time.Duration
	// RenderWait bounds how long the file tree page waits for the
	// renderer. Defaults to 30s.
	RenderWait time.Duration
}

// Frontend renders the pages and owns the per-process view state: the
// running job, the mounted diagram and the audio player.
type Frontend struct {
	client   *api.Client
	gate     *session.Gate
	poller   *job.Poller
	history  *job.History
	renderer diagrams.Renderer
	player   *audio.Player
	view     *viewport.Controller
	entry    string
	wait     time.Duration

	md    goldmark.Markdown
	pages map[string]*template.Template
	hub   *hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	jobRunning bool
	jobErr     string
	repos      []api.RepoInfo
	deleting   map[string]bool
	deleteErr  string
	diagram    *diagramState
	chatFlash  map[session.Identity][]message
	podcast    podcastState
}

// New creates a Frontend. Call Close to stop background work.
func New(opts Options) (*Frontend, error) {
	if opts.Client == nil || opts.Gate == nil || opts.Poller == nil {
		return nil, errors.New("frontend: client, gate and poller are required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	if opts.Entry == "" {
		opts.Entry = "/"
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = 30 * time.Second
	}
	if opts.Renderer == nil {
		opts.Renderer = diagrams.MermaidCLI{}
	}
	if opts.Speaker == nil {
		opts.Speaker = audio.Command{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Frontend{
		client:    opts.Client,
		gate:      opts.Gate,
		poller:    opts.Poller,
		history:   opts.History,
		renderer:  opts.Renderer,
		entry:     opts.Entry,
		wait:      opts.RenderWait,
		md:        newMarkdown(),
		pages:     pages,
		hub:       newHub(),
		ctx:       ctx,
		cancel:    cancel,
		deleting:  map[string]bool{},
		chatFlash: map[session.Identity][]message{},
	}
	f.view = viewport.New(viewport.Options{
		Duration: opts.ZoomDuration,
		OnFrame:  f.publishTransform,
	})
	f.player = audio.NewPlayer(opts.Speaker, f.publishPlaying)
	return f, nil
}

// RegisterRoutes mounts all pages and live channels onto the given router.
// Protected pages rely on the route guard installed by the server.
func (f *Frontend) RegisterRoutes(r chi.Router) {
	r.Get("/", f.handleIndex)
	r.Post("/analyze", f.handleAnalyze)
	r.Post("/repos/{id}/open", f.handleOpenRepo)
	r.Post("/repos/{id}/delete", f.handleDeleteRepo)

	r.Get("/dashboard", f.handleDashboard)
	r.Get("/chat", f.handleChat)
	r.Post("/chat", f.handleChatSend)
	r.Get("/file-tree", f.handleFileTree)
	r.Post("/file-tree/zoom", f.handleZoom)
	r.Get("/audio", f.handleAudio)
	r.Post("/audio/generate", f.handleAudioGenerate)
	r.Post("/audio/play", f.handleAudioPlay)
	r.Post("/audio/stop", f.handleAudioStop)

	r.Get("/api/session", f.handleSessionState)
	r.Delete("/api/session", f.handleSessionClear)
	r.Post("/api/analyze", f.handleAnalyzeJSON)
	r.Get("/api/jobs", f.handleJobs)

	r.Get("/ws/job", f.handleJobSocket)
	r.Get("/ws/session", f.handleSessionSocket)
	r.Get("/ws/viewport", f.handleViewportSocket)
	r.Get("/ws/audio", f.handleAudioSocket)
}

// Close stops the running job, playback and animations, and waits for
// background work to return.
func (f *Frontend) Close() {
	f.cancel()
	f.player.Stop()
	f.view.Close()
	f.wg.Wait()
	f.hub.close()
}
