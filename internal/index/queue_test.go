package index

import (
	"sync"
	"testing"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
)

func item(id string, status domain.QueueStatus) domain.QueueItem {
	return domain.QueueItem{ID: id, Status: status, Idea: domain.Idea{Title: "t-" + id}}
}

func TestQueueIndexFirstUpdateIsBaseline(t *testing.T) {
	idx := NewQueueIndex()

	got := idx.Update([]domain.QueueItem{
		item("a", domain.QueueComplete),
		item("b", domain.QueuePending),
	})
	if len(got) != 0 {
		t.Errorf("first Update() returned %v completions, want 0", len(got))
	}
	if idx.Count() != 2 {
		t.Errorf("Count() = %d, want 2", idx.Count())
	}
	if idx.LastUpdate().IsZero() {
		t.Error("LastUpdate() should be set")
	}
}

func TestQueueIndexDetectsCompletions(t *testing.T) {
	idx := NewQueueIndex()
	idx.Update([]domain.QueueItem{
		item("a", domain.QueueComplete),
		item("b", domain.QueuePending),
		item("c", domain.QueuePending),
	})

	got := idx.Update([]domain.QueueItem{
		item("a", domain.QueueComplete),
		item("b", domain.QueueComplete),
		item("c", domain.QueuePending),
		item("d", domain.QueueComplete), // enqueued and rendered between two reads
	})

	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "d" {
		t.Fatalf("Update() = %v, want [b d]", got)
	}
	if idx.Count() != 4 {
		t.Errorf("Count() = %d, want 4", idx.Count())
	}

	if again := idx.Update([]domain.QueueItem{item("b", domain.QueueComplete)}); len(again) != 0 {
		t.Errorf("repeated Update() returned %v, want none", again)
	}
	if idx.Count() != 1 {
		t.Errorf("Count() = %d, want 1: Update() should replace the index", idx.Count())
	}
}

func TestQueueIndexConcurrentAccess(t *testing.T) {
	idx := NewQueueIndex()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			idx.Update([]domain.QueueItem{item("x", domain.QueuePending)})
		}()
		go func() {
			defer wg.Done()
			_ = idx.Count()
			_ = idx.LastUpdate()
		}()
	}
	wg.Wait()
}
