package job

import "github.com/ziadkadry99/devcompass/internal/session"

// Status is a job state as reported by the backend, plus the client-only
// "done" state shown while the UI settles before navigating.
type Status string

const (
	StatusSetup      Status = "setup"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

var statusMessages = map[Status]string{
	StatusSetup:      "Starting setup...",
	StatusProcessing: "Processing repository...",
	StatusReady:      "Processing complete!",
	StatusDone:       "Redirecting...",
	StatusError:      "An error occurred.",
}

var statusWidths = map[Status]int{
	StatusSetup:      25,
	StatusProcessing: 50,
	StatusReady:      75,
	StatusDone:       100,
	StatusError:      100,
}

// Message is the progress text shown for s.
func (s Status) Message() string {
	if m, ok := statusMessages[s]; ok {
		return m
	}
	return "Please wait..."
}

// Width is the progress bar fill for s, in percent.
func (s Status) Width() int {
	return statusWidths[s]
}

// Known reports whether s is one of the declared statuses.
func (s Status) Known() bool {
	_, ok := statusMessages[s]
	return ok
}

// Terminal reports whether polling stops at s.
func (s Status) Terminal() bool {
	return transitions[s] != Continue
}

// Outcome is what the poller does after observing a status.
type Outcome int

const (
	Continue Outcome = iota
	Resolve
	Fail
)

// transitions holds the single terminal rule for each status. Statuses not
// listed keep the job polling.
var transitions = map[Status]Outcome{
	StatusReady: Resolve,
	StatusError: Fail,
}

// Update is one observation of a job, delivered to the observer in order.
type Update struct {
	Status   Status           `json:"status"`
	Message  string           `json:"message,omitempty"`
	Identity session.Identity `json:"identity,omitempty"`
}

// Outcome returns the transition rule for u's status.
func (u Update) Outcome() Outcome {
	return transitions[u.Status]
}

// Display is the text and bar width a progress view shows for u.
func (u Update) Display() (text string, width int) {
	return u.Status.Message(), u.Status.Width()
}
