// Package events decouples running downloads from whoever observes them.
package events

import (
	"time"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
)

type Kind string

const (
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Event as seen by remote observers, tagged with the session it belongs
// to. Fetch errors carry no session.
type Event struct {
	Kind      Kind                       `json:"kind"`
	SessionId string                     `json:"session_id,omitempty"`
	Progress  *internal.DownloadProgress `json:"progress"`
	Message   string                     `json:"message,omitempty"`
	Time      time.Time                  `json:"time"`
}

// Hub holds the three observable streams plus a combined feed.
//
//	Errors:     error messages, no replay
//	Progress:   latest snapshot, replayed; nil means no data yet
//	Completion: latest completion, replayed; false once a new session starts
type Hub struct {
	Errors     *Stream[string]
	Progress   *Stream[*internal.DownloadProgress]
	Completion *Stream[bool]
	Feed       *Stream[Event]
}

func NewHub(buffer int) *Hub {
	return &Hub{
		Errors:     NewStream[string](buffer, false),
		Progress:   NewStream[*internal.DownloadProgress](buffer, true),
		Completion: NewStream[bool](buffer, true),
		Feed:       NewStream[Event](buffer, false),
	}
}

func (h *Hub) PublishProgress(sessionId string, p *internal.DownloadProgress) {
	h.Progress.Publish(p)
	h.Feed.Publish(Event{
		Kind:      KindProgress,
		SessionId: sessionId,
		Progress:  p,
		Time:      time.Now(),
	})
}

func (h *Hub) PublishCompletion(sessionId string) {
	h.Completion.Publish(true)
	h.Feed.Publish(Event{
		Kind:      KindCompleted,
		SessionId: sessionId,
		Time:      time.Now(),
	})
}

// ClearCompletion resets the replayed completion to false so a new
// session does not inherit the previous one's outcome.
func (h *Hub) ClearCompletion() {
	h.Completion.Publish(false)
}

func (h *Hub) PublishError(sessionId, msg string) {
	h.Errors.Publish(msg)
	h.Feed.Publish(Event{
		Kind:      KindError,
		SessionId: sessionId,
		Message:   msg,
		Time:      time.Now(),
	})
}

func (h *Hub) Close() {
	h.Errors.Close()
	h.Progress.Close()
	h.Completion.Close()
	h.Feed.Close()
}
