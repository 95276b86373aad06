package domain

import (
	"encoding/json"
	"time"
)

// QueueStatus is the lifecycle state of a render request.
// Only the external renderer moves an item from pending to complete.
type QueueStatus string

const (
	QueuePending  QueueStatus = "pending"
	QueueComplete QueueStatus = "complete"
)

const (
	// DefaultPriority is stored when the caller gives none. Priority never
	// reorders processing.
	DefaultPriority = 1
	// SummaryTail is the size of the preview window returned by Summarize.
	SummaryTail = 10
)

// QueueItem is one publish request for the external renderer.
type QueueItem struct {
	ID       string      `json:"id"`
	Idea     Idea        `json:"idea"`
	Template string      `json:"template"`
	Priority int         `json:"priority"`
	Added    time.Time   `json:"added"`
	Status   QueueStatus `json:"status"`

	// Extra keeps fields written by the renderer.
	Extra map[string]json.RawMessage `json:"-"`
}

var queueItemKeys = []string{"id", "idea", "template", "priority", "added", "status"}

type queueItemAlias QueueItem

func (q *QueueItem) UnmarshalJSON(data []byte) error {
	var a queueItemAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, queueItemKeys)
	if err != nil {
		return err
	}
	a.Extra = extra
	*q = QueueItem(a)
	return nil
}

func (q QueueItem) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(queueItemAlias(q))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, q.Extra)
}

// EnqueueRequest is the body accepted by /api/render/add.
type EnqueueRequest struct {
	ID       string `json:"id,omitempty" validate:"omitempty,max=128"`
	Idea     *Idea  `json:"idea" validate:"required"`
	Template string `json:"template,omitempty" validate:"omitempty,max=128"`
	Priority *int   `json:"priority,omitempty" validate:"omitempty,gte=0"`
}

// Summary is the status overview of the queue.
type Summary struct {
	Pending  int         `json:"pending"`
	Complete int         `json:"complete"`
	Total    int         `json:"total"`
	Items    []QueueItem `json:"items"`
}

// Summarize counts items by status and keeps the last SummaryTail items in
// insertion order.
func Summarize(items []QueueItem) Summary {
	s := Summary{Total: len(items), Items: []QueueItem{}}
	for _, it := range items {
		switch it.Status {
		case QueuePending:
			s.Pending++
		case QueueComplete:
			s.Complete++
		}
	}
	start := len(items) - SummaryTail
	if start < 0 {
		start = 0
	}
	s.Items = append(s.Items, items[start:]...)
	return s
}
