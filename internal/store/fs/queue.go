package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/validation"
)

var (
	// ErrQueueCorrupt means the queue file exists but is not a JSON array of
	// items. It is never turned into an empty queue.
	ErrQueueCorrupt = errors.New("render queue is corrupt")
	ErrInvalidItem  = errors.New("invalid queue item")
	ErrDuplicateID  = errors.New("queue item id already exists")
)

// Queue is the render queue file shared with the external renderer. The
// server only appends; the renderer flips items to complete.
type Queue struct {
	fs              afero.Fs
	path            string
	defaultTemplate string
	log             logger.Logger
	now             func() time.Time
	newID           func() (string, error)

	// mu serializes every read-modify-write of the file.
	mu sync.Mutex
}

func NewQueue(fsys afero.Fs, path, defaultTemplate string, log logger.Logger) *Queue {
	return &Queue{
		fs:              fsys,
		path:            path,
		defaultTemplate: defaultTemplate,
		log:             log,
		now:             time.Now,
		newID:           newItemID,
	}
}

// newItemID returns a UUIDv7, so ids sort by creation time.
func newItemID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate item id: %w", err)
	}
	return id.String(), nil
}

// Path returns the queue file location.
func (q *Queue) Path() string { return q.path }

// Load returns all items in insertion order. A missing or empty file is an
// empty queue; anything unparsable is ErrQueueCorrupt.
func (q *Queue) Load(ctx context.Context) ([]domain.QueueItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.loadLocked()
}

func (q *Queue) loadLocked() ([]domain.QueueItem, error) {
	data, err := afero.ReadFile(q.fs, q.path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return []domain.QueueItem{}, nil
		}
		return nil, fmt.Errorf("failed to read queue %s: %w", q.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.QueueItem{}, nil
	}

	var items []domain.QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQueueCorrupt, q.path, err)
	}
	if items == nil {
		items = []domain.QueueItem{}
	}
	return items, nil
}

func (q *Queue) saveLocked(items []domain.QueueItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return writeAtomic(q.fs, q.path, data, filePerm)
}

// Enqueue validates req, appends a new pending item and persists the queue.
// Nothing is written when validation fails or the file is corrupt.
func (q *Queue) Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.QueueItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.QueueItem{}, err
	}

	if err := validation.Struct(req); err != nil {
		return domain.QueueItem{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if err := validation.Var("idea.title", strings.TrimSpace(req.Idea.Title), "required"); err != nil {
		return domain.QueueItem{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}

	item := domain.QueueItem{
		ID:       strings.TrimSpace(req.ID),
		Idea:     *req.Idea,
		Template: strings.TrimSpace(req.Template),
		Priority: domain.DefaultPriority,
		Added:    q.now().UTC(),
		Status:   domain.QueuePending,
	}
	if item.Template == "" {
		item.Template = q.defaultTemplate
	}
	if req.Priority != nil {
		item.Priority = *req.Priority
	}
	if item.ID == "" {
		id, err := q.newID()
		if err != nil {
			return domain.QueueItem{}, err
		}
		item.ID = id
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.loadLocked()
	if err != nil {
		return domain.QueueItem{}, err
	}
	for _, existing := range items {
		if existing.ID == item.ID {
			return domain.QueueItem{}, fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
	}

	items = append(items, item)
	if err := q.saveLocked(items); err != nil {
		return domain.QueueItem{}, err
	}

	q.log.Info("render item queued",
		logger.String("item_id", item.ID),
		logger.String("template", item.Template),
		logger.Int("queue_total", len(items)))

	return item, nil
}

// Summarize returns counts per status plus the last few items.
func (q *Queue) Summarize(ctx context.Context) (domain.Summary, error) {
	items, err := q.Load(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summarize(items), nil
}

// Quarantine moves the queue file aside as <path>.corrupt-<unix> and
// returns the new location. The next Load sees an empty queue.
func (q *Queue) Quarantine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	target := fmt.Sprintf("%s.corrupt-%d", q.path, q.now().Unix())
	if err := q.fs.Rename(q.path, target); err != nil {
		return "", fmt.Errorf("failed to quarantine queue %s: %w", q.path, err)
	}

	q.log.Warn("corrupt render queue moved aside",
		logger.String("from", q.path),
		logger.String("to", target))

	return target, nil
}
