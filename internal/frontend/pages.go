package frontend

import (
	"html/template"
	"log"
	"net/http"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// dashboardData is what the dashboard shows for the active repository.
type dashboardData struct {
	Repo  *api.RepoInfo
	Error string
}

func (f *Frontend) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	var data dashboardData
	repo, err := f.client.GetRepo(r.Context(), string(id))
	if err != nil {
		log.Printf("frontend: fetching repository %s: %v", id, err)
		data.Error = detailOr(err, "Failed to fetch repo info")
	} else {
		data.Repo = repo
	}
	f.render(w, "dashboard", "Dashboard", data)
}

// message is one chat bubble.
type message struct {
	User bool
	Text string
	HTML template.HTML
}

type chatData struct {
	Messages []message
}

const chatErrorText = "Sorry, I encountered an error. Please try again."

func (f *Frontend) handleChat(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	history, err := f.client.ChatHistory(r.Context(), string(id))
	if err != nil {
		log.Printf("frontend: fetching chat history: %v", err)
	}

	var data chatData
	for _, item := range history {
		data.Messages = append(data.Messages,
			message{User: true, Text: item.Query},
			message{Text: item.Response, HTML: f.markdown(item.Response)},
		)
	}
	f.mu.Lock()
	data.Messages = append(data.Messages, f.chatFlash[id]...)
	f.mu.Unlock()

	f.render(w, "chat", "Chat", data)
}

func (f *Frontend) handleChatSend(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	text := r.FormValue("message")
	if isBlank(text) || id.IsZero() {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	if _, err := f.client.Chat(r.Context(), string(id), text); err != nil {
		log.Printf("frontend: chat: %v", err)
		f.mu.Lock()
		f.chatFlash[id] = append(f.chatFlash[id],
			message{User: true, Text: text},
			message{Text: chatErrorText, HTML: template.HTML(template.HTMLEscapeString(chatErrorText))},
		)
		f.mu.Unlock()
	}
	// The backend keeps the conversation; the page reloads it.
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// podcastState is the audio page state for one repository.
type podcastState struct {
	id     session.Identity
	script string
	err    string
}

type audioData struct {
	Script  string
	HTML    template.HTML
	Error   string
	Playing bool
}

func (f *Frontend) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	f.mu.Lock()
	st := f.podcast
	f.mu.Unlock()

	var data audioData
	if st.id == id {
		data.Script, data.Error = st.script, st.err
		if st.script != "" {
			data.HTML = f.markdown(st.script)
		}
	}
	data.Playing = f.player.Playing()
	f.render(w, "audio", "Audio Preview", data)
}

func (f *Frontend) handleAudioGenerate(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	f.player.Stop()

	st := podcastState{id: id}
	if id.IsZero() {
		st.err = "No repository selected. Please go back and select one."
	} else if script, err := f.client.Podcast(r.Context(), string(id)); err != nil {
		log.Printf("frontend: generating podcast: %v", err)
		st.err = detailOr(err, "Failed to generate podcast script.")
	} else {
		st.script = script
	}

	f.mu.Lock()
	f.podcast = st
	f.mu.Unlock()
	http.Redirect(w, r, "/audio", http.StatusSeeOther)
}

func (f *Frontend) handleAudioPlay(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	f.mu.Lock()
	st := f.podcast
	f.mu.Unlock()
	if st.id == id && st.script != "" {
		if _, err := f.player.Toggle(st.script); err != nil {
			log.Printf("frontend: playback: %v", err)
		}
	}
	http.Redirect(w, r, "/audio", http.StatusSeeOther)
}

func (f *Frontend) handleAudioStop(w http.ResponseWriter, r *http.Request) {
	f.player.Stop()
	http.Redirect(w, r, "/audio", http.StatusSeeOther)
}

func (f *Frontend) publishPlaying(playing bool) {
	f.hub.publish(topicAudio, event{Type: "audio", Playing: playing})
}
