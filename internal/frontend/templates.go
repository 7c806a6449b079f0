package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
)

// layoutData wraps every page.
type layoutData struct {
	Title string
	Page  string
	Guard bool // page needs a live session and listens for eviction
	Data  any
}

var pageGuarded = map[string]bool{
	"index":     false,
	"dashboard": true,
	"chat":      true,
	"file-tree": true,
	"audio":     true,
}

var pageBodies = map[string]string{
	"index":     indexTemplate,
	"dashboard": dashboardTemplate,
	"chat":      chatTemplate,
	"file-tree": fileTreeTemplate,
	"audio":     audioTemplate,
}

var funcs = template.FuncMap{
	"count": func(v *int) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprint(*v)
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageBodies))
	for name, body := range pageBodies {
		t, err := template.New("layout").Funcs(funcs).Parse(layoutTemplate)
		if err != nil {
			return nil, fmt.Errorf("parsing layout: %w", err)
		}
		if _, err := t.New("content").Parse(body); err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (f *Frontend) render(w http.ResponseWriter, page, title string, data any) {
	t, ok := f.pages[page]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "layout", layoutData{
		Title: title,
		Page:  page,
		Guard: pageGuarded[page],
		Data:  data,
	})
	if err != nil {
		log.Printf("frontend: rendering %s: %v", page, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

const layoutTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    :root { --bg:#0f1115; --card:#181b22; --muted:#8b93a7; --primary:#7c9cff; --danger:#ef5350; --fg:#e8eaf0; }
    * { box-sizing: border-box; }
    body { margin:0; font-family: system-ui, sans-serif; background:var(--bg); color:var(--fg); }
    header { display:flex; justify-content:space-between; align-items:center; height:56px; padding:0 16px; border-bottom:1px solid var(--primary); }
    header .brand { font-family: Georgia, serif; font-size:1.5rem; font-weight:bold; }
    header nav a { margin-left:24px; color:var(--fg); text-decoration:none; }
    header nav a:hover { text-decoration:underline; }
    main { padding:16px; }
    .card { background:var(--card); border-radius:12px; padding:16px; }
    .muted { color:var(--muted); }
    .error { color:var(--danger); }
    button, .button { background:var(--primary); color:#0b0d12; border:0; border-radius:6px; padding:6px 14px; cursor:pointer; text-decoration:none; }
    button.danger { background:var(--danger); color:#fff; }
    button:disabled { opacity:.5; cursor:default; }
    .loader { position:fixed; inset:0; background:rgba(15,17,21,.85); display:flex; align-items:center; justify-content:center; }
    .bar { height:8px; border-radius:4px; background:#2a2f3a; overflow:hidden; width:100%; }
    .bar > div { height:100%; background:var(--primary); transition:width .5s ease-in-out; }
    .bar > div.failed { background:var(--danger); }
  </style>
</head>
<body data-page="{{.Page}}">
  {{if .Guard}}
  <header>
    <div class="brand">Dev Compass</div>
    <nav>
      <a href="/dashboard">Dashboard</a>
      <a href="/chat">Chat</a>
      <a href="/file-tree">File Tree</a>
      <a href="/audio">Audio</a>
    </nav>
  </header>
  {{end}}
  <main>
  {{template "content" .Data}}
  </main>
  <script>
    function socket(path, onEvent) {
      var proto = location.protocol === "https:" ? "wss://" : "ws://";
      var ws = new WebSocket(proto + location.host + path);
      ws.onmessage = function (m) { onEvent(JSON.parse(m.data), ws); };
      return ws;
    }
    {{if .Guard}}
    socket("/ws/session", function (ev) {
      if (ev.type === "evict") { location.replace(ev.to); }
    });
    {{end}}
  </script>
</body>
</html>
`

const indexTemplate = `
{{if .Running}}
<div class="loader" id="loader">
  <div class="card" style="width:100%;max-width:28rem">
    <p id="loader-text" style="font-size:1.1rem">{{.Text}}</p>
    <div class="bar"><div id="loader-bar" style="width:{{.Width}}%"></div></div>
  </div>
</div>
<script>
  socket("/ws/job", function (ev) {
    var text = document.getElementById("loader-text");
    var bar = document.getElementById("loader-bar");
    if (ev.type === "progress") {
      text.textContent = ev.text;
      bar.style.width = (ev.width || 0) + "%";
      bar.className = ev.status === "error" ? "failed" : "";
    } else if (ev.type === "navigate") {
      location.assign(ev.to);
    } else if (ev.type === "failed") {
      location.reload();
    }
  });
</script>
{{end}}
<section style="max-width:42rem;margin:10vh auto;text-align:center">
  <h1 style="font-family:Georgia,serif;font-size:4rem;margin-bottom:.5rem">Dev Compass</h1>
  <p class="muted">Get insights into any GitHub repository.</p>
  <form method="post" action="/analyze" style="display:flex;gap:8px;margin-top:2rem">
    <label for="repository-url" class="muted" style="align-self:center">Enter a repository url</label>
    <input id="repository-url" name="repo" placeholder="microsoft/WSL" autocomplete="off" style="flex:1;padding:8px;border-radius:6px;border:1px solid #333;background:#111;color:inherit">
    <button type="submit"{{if .Running}} disabled{{end}}>Analyze</button>
  </form>
  {{with .JobError}}<p class="error">{{.}}</p>{{end}}
</section>
<section class="card" style="max-width:42rem;margin:0 auto">
  <h2>Past Repositories</h2>
  {{with .DeleteErr}}<p class="error">{{.}}</p>{{end}}
  {{if not .Repos}}
  <p class="muted">No past repositories found.</p>
  {{else}}
  <ul style="list-style:none;padding:0">
    {{range .Repos}}
    <li style="display:flex;justify-content:space-between;align-items:center;padding:8px 0;border-bottom:1px solid #262a33">
      <div>
        <div>{{.RepoURL}}</div>
        <small class="muted">{{.CollectionName}}</small>
      </div>
      <div style="display:flex;gap:8px">
        {{$busy := index $.Deleting (print .ID)}}
        <form method="post" action="/repos/{{.ID}}/open"><button{{if $busy}} disabled{{end}}>Open</button></form>
        <form method="post" action="/repos/{{.ID}}/delete"><button class="danger"{{if $busy}} disabled{{end}}>{{if $busy}}Deleting...{{else}}Delete{{end}}</button></form>
      </div>
    </li>
    {{end}}
  </ul>
  {{end}}
  {{if .Runs}}
  <h3>Recent runs</h3>
  <ul class="muted">
    {{range .Runs}}<li>{{.RepoURL}}: {{.Status}}{{with .Message}} ({{.}}){{end}}</li>{{end}}
  </ul>
  {{end}}
</section>
`

const dashboardTemplate = `
{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{with .Repo}}
<h1>{{.DisplayName}}</h1>
<p class="muted">{{.Description}}</p>
<div style="display:grid;grid-template-columns:repeat(4,1fr);gap:24px;margin-bottom:16px">
  <div class="card"><strong>{{count .Issues}}</strong><div class="muted">Issues</div></div>
  <div class="card"><strong>{{count .Forks}}</strong><div class="muted">Forks</div></div>
  <div class="card"><strong>{{count .Stars}}</strong><div class="muted">Stars</div></div>
  <div class="card"><strong>{{orDash .License}}</strong><div class="muted">License</div></div>
</div>
<div style="display:grid;grid-template-columns:1fr 1fr;gap:32px">
  <div>
    <h3>Recent Activity:</h3>
    {{range .LastActivity}}
    <div class="card" style="margin-bottom:8px">
      <div class="muted" style="display:flex;justify-content:space-between"><span>{{.Date}}</span><a href="{{.URL}}" target="_blank" rel="noopener">{{.SHA}}</a></div>
      <div style="display:flex;justify-content:space-between"><span>{{.Message}}</span><span>{{.Author}}</span></div>
    </div>
    {{end}}
  </div>
  <div style="display:flex;flex-direction:column;gap:12px">
    <div class="card"><p>Take help about your problem</p><a class="button" href="/chat">Ask</a></div>
    <div class="card"><p>Analyze file structure</p><a class="button" href="/file-tree">Get File Tree</a></div>
    <div class="card"><p>Don't have much time..</p><a class="button" href="/audio">Get Audio Preview</a></div>
  </div>
</div>
{{end}}
`

const chatTemplate = `
<div class="card" style="max-width:48rem;margin:0 auto">
  {{if not .Messages}}
  <h1 style="font-family:Georgia,serif;text-align:center">Hi! How can I help you today?</h1>
  {{end}}
  {{range .Messages}}
  <div style="display:flex;justify-content:{{if .User}}flex-end{{else}}flex-start{{end}};margin:8px 0">
    <div class="card" style="max-width:80%;background:{{if .User}}#2b3550{{else}}#20242d{{end}}">
      {{if .User}}{{.Text}}{{else}}{{.HTML}}{{end}}
    </div>
  </div>
  {{end}}
  <form method="post" action="/chat" style="display:flex;gap:8px;margin-top:16px">
    <input name="message" placeholder="Ask anything about this repository" autocomplete="off" style="flex:1;padding:8px;border-radius:6px;border:1px solid #333;background:#111;color:inherit">
    <button type="submit">Send</button>
  </form>
</div>
`

const fileTreeTemplate = `
<h2 style="position:absolute;top:72px;left:32px">File Structure</h2>
<div id="diagram" class="card" style="height:calc(100vh - 120px);display:flex;align-items:center;justify-content:center;overflow:hidden">
  {{if .Loading}}<p>Loading diagram...</p>{{end}}
  {{with .Error}}<p class="error">{{.}}</p>{{end}}
  {{.SVG}}
</div>
<div style="position:fixed;bottom:32px;right:32px;display:flex;gap:8px">
  <form method="post" action="/file-tree/zoom"><button name="op" value="in" data-op="in" title="Zoom in">+</button></form>
  <form method="post" action="/file-tree/zoom"><button name="op" value="out" data-op="out" title="Zoom out">-</button></form>
  <form method="post" action="/file-tree/zoom"><button name="op" value="reset" data-op="reset" title="Reset">&#8635;</button></form>
</div>
{{if .SVG}}
<script>
  (function () {
    var svg = document.querySelector("#diagram svg");
    var group = svg && svg.querySelector("g");
    var ws = socket("/ws/viewport", function (ev) {
      if (ev.type === "transform" && group) { group.setAttribute("transform", ev.transform); }
    });
    function send(msg) { if (ws.readyState === 1) { ws.send(JSON.stringify(msg)); } }
    document.querySelectorAll("button[data-op]").forEach(function (b) {
      b.addEventListener("click", function (e) { e.preventDefault(); send({op: b.dataset.op}); });
    });
    if (!svg) { return; }
    svg.addEventListener("wheel", function (e) {
      e.preventDefault();
      var r = svg.getBoundingClientRect();
      send({op: "wheel", x: e.clientX - r.left, y: e.clientY - r.top, factor: Math.pow(2, -e.deltaY * 0.002)});
    }, {passive: false});
    var last = null;
    svg.addEventListener("pointerdown", function (e) { last = [e.clientX, e.clientY]; });
    window.addEventListener("pointerup", function () { last = null; });
    svg.addEventListener("pointermove", function (e) {
      if (!last) { return; }
      send({op: "pan", x: e.clientX - last[0], y: e.clientY - last[1]});
      last = [e.clientX, e.clientY];
    });
  })();
</script>
{{end}}
`

const audioTemplate = `
<div class="card" style="min-height:70vh;display:flex;flex-direction:column;align-items:center;justify-content:center">
  {{if .Script}}
  <h2>Audio Preview</h2>
  <p id="playing" class="muted"{{if not .Playing}} hidden{{end}}>Playing...</p>
  <div style="max-width:48rem">{{.HTML}}</div>
  {{else}}
  <h1 style="font-family:Georgia,serif">Create Audio Preview</h1>
  {{end}}
  <div style="display:flex;gap:16px;margin:16px 0">
    <form method="post" action="/audio/generate"><button>Generate</button></form>
    <form method="post" action="{{if .Playing}}/audio/stop{{else}}/audio/play{{end}}">
      <button id="play"{{if not .Script}} disabled{{end}}>{{if .Playing}}Stop{{else}}Play{{end}}</button>
    </form>
  </div>
  {{with .Error}}<p class="error">{{.}}</p>{{end}}
  <p class="muted" style="max-width:500px;text-align:center">
    Click "Generate" to create a podcast script based on the selected repository's content.
  </p>
</div>
<script>
  socket("/ws/audio", function (ev) {
    var playing = !!ev.playing;
    var button = document.getElementById("play");
    var label = document.getElementById("playing");
    if (button) {
      button.textContent = playing ? "Stop" : "Play";
      button.form.action = playing ? "/audio/stop" : "/audio/play";
    }
    if (label) { label.hidden = !playing; }
  });
</script>
`
