package domain

import "time"

type EventKind string

const (
	EventNewIdea        EventKind = "new_idea"
	EventRenderComplete EventKind = "render_complete"
)

// Event is a notification about something a human may want to look at.
type Event struct {
	Kind   EventKind `json:"kind"`
	Title  string    `json:"title"`
	IdeaID int64     `json:"idea_id,omitempty"`
	ItemID string    `json:"item_id,omitempty"`
	At     time.Time `json:"at"`
}

// Text is the one-line form written to the signal file.
func (e Event) Text() string {
	switch e.Kind {
	case EventRenderComplete:
		return "Render Complete: " + e.Title
	default:
		return "New Idea: " + e.Title
	}
}
