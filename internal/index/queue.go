package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
)

// QueueIndex remembers the last seen status of every render queue item so
// changes made by the external renderer can be detected.
type QueueIndex struct {
	mu         sync.RWMutex
	status     map[string]domain.QueueStatus // ID -> Status
	primed     bool
	lastUpdate time.Time
}

func NewQueueIndex() *QueueIndex {
	return &QueueIndex{
		status: make(map[string]domain.QueueStatus),
	}
}

// Update replaces the index with items and returns the items that became
// complete since the previous update, in queue order. The first update only
// records a baseline and returns nothing.
func (idx *QueueIndex) Update(items []domain.QueueItem) []domain.QueueItem {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var completed []domain.QueueItem
	next := make(map[string]domain.QueueStatus, len(items))
	for _, it := range items {
		next[it.ID] = it.Status
		if !idx.primed || it.Status != domain.QueueComplete {
			continue
		}
		if prev, ok := idx.status[it.ID]; !ok || prev != domain.QueueComplete {
			completed = append(completed, it)
		}
	}

	idx.status = next
	idx.primed = true
	idx.lastUpdate = time.Now()
	return completed
}

// Count returns the number of indexed items.
func (idx *QueueIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.status)
}

// LastUpdate returns the time of the last Update, zero if never updated.
func (idx *QueueIndex) LastUpdate() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.lastUpdate
}
