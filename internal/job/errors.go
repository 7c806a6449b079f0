package job

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyReference is returned for blank input; no request is made.
	ErrEmptyReference = errors.New("repository reference is empty")
	// ErrJobInProgress is returned when a job is already running.
	ErrJobInProgress = errors.New("a repository is already being processed")
)

// Kind classifies job failures.
type Kind int

const (
	// KindSubmission means the job could not be started.
	KindSubmission Kind = iota + 1
	// KindPollTransport means a status sample failed outright.
	KindPollTransport
	// KindServer means the backend reported the job as failed.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindSubmission:
		return "submission"
	case KindPollTransport:
		return "poll transport"
	case KindServer:
		return "server"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a terminal job failure. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a job Error of kind k.
func IsKind(err error, k Kind) bool {
	var je *Error
	return errors.As(err, &je) && je.Kind == k
}

const (
	submissionMessage     = "Failed to start repository setup."
	defaultFailureMessage = "Processing failed."
	missingIDMessage      = "Processing finished without a repository id."
)
