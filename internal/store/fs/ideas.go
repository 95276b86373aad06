package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

var (
	ErrIdeaNotFound = errors.New("idea not found")
	// ErrIdeaCorrupt is returned by Get when the JSON file exists but cannot be parsed.
	ErrIdeaCorrupt = errors.New("idea file is corrupt")
	// ErrIdeaExists is returned by Create when the id is already taken.
	ErrIdeaExists    = errors.New("idea already exists")
	ErrInvalidIdeaID = errors.New("idea id must be positive")
)

const (
	ideaPrefix = "idea-"
	filePerm   = 0o644
	dirPerm    = 0o755
)

// IdeaStore keeps one idea-<id>.json file (authoritative) and one
// idea-<id>.md export per idea in a single directory.
type IdeaStore struct {
	fs  afero.Fs
	dir string
	log logger.Logger
	now func() time.Time

	// mu serializes id allocation and writes.
	mu     sync.Mutex
	lastID int64
}

// NewIdeaStore creates a store rooted at dir. Use afero.NewOsFs() in
// production and afero.NewMemMapFs() in tests.
func NewIdeaStore(fsys afero.Fs, dir string, log logger.Logger) *IdeaStore {
	return &IdeaStore{
		fs:  fsys,
		dir: dir,
		log: log,
		now: time.Now,
	}
}

// Dir returns the ideas directory.
func (s *IdeaStore) Dir() string { return s.dir }

// Init creates the ideas directory if needed.
func (s *IdeaStore) Init() error {
	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create ideas dir %s: %w", s.dir, err)
	}
	return nil
}

func (s *IdeaStore) jsonPath(id int64) string {
	return filepath.Join(s.dir, ideaPrefix+strconv.FormatInt(id, 10)+".json")
}

func (s *IdeaStore) markdownPath(id int64) string {
	return filepath.Join(s.dir, ideaPrefix+strconv.FormatInt(id, 10)+".md")
}

// List returns every parsable idea in the directory. Unparsable files are
// skipped with a warning so one bad file never hides the rest.
func (s *IdeaStore) List(ctx context.Context) ([]domain.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return []domain.Idea{}, nil
		}
		return nil, fmt.Errorf("failed to list ideas dir %s: %w", s.dir, err)
	}

	ideas := make([]domain.Idea, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || IsTempFile(name) {
			continue
		}

		path := filepath.Join(s.dir, name)
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			s.log.Warn("failed to read idea file, skipping",
				logger.String("file", path),
				logger.Error(err))
			continue
		}

		var idea domain.Idea
		if err := json.Unmarshal(data, &idea); err != nil {
			s.log.Warn("failed to parse idea file, skipping",
				logger.String("file", path),
				logger.Error(err))
			continue
		}
		ideas = append(ideas, idea)
	}

	return ideas, nil
}

// Get loads a single idea.
func (s *IdeaStore) Get(ctx context.Context, id int64) (domain.Idea, error) {
	if err := ctx.Err(); err != nil {
		return domain.Idea{}, err
	}
	return s.read(id)
}

func (s *IdeaStore) read(id int64) (domain.Idea, error) {
	path := s.jsonPath(id)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return domain.Idea{}, fmt.Errorf("%w: %d", ErrIdeaNotFound, id)
		}
		return domain.Idea{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var idea domain.Idea
	if err := json.Unmarshal(data, &idea); err != nil {
		return domain.Idea{}, fmt.Errorf("%w: %s: %v", ErrIdeaCorrupt, path, err)
	}
	return idea, nil
}

// Save creates or overwrites an idea. A zero id gets a fresh one, a
// negative id is rejected. created is true when no file existed for the id
// before.
//
// The status must be a known stage (empty means ideas). On overwrite the
// stage may only stay or move one step forward.
func (s *IdeaStore) Save(ctx context.Context, idea domain.Idea) (saved domain.Idea, created bool, err error) {
	return s.save(ctx, idea, false)
}

// Create writes idea only when no file exists for its id, otherwise it
// returns ErrIdeaExists and leaves the stored idea untouched.
func (s *IdeaStore) Create(ctx context.Context, idea domain.Idea) (domain.Idea, error) {
	saved, _, err := s.save(ctx, idea, true)
	return saved, err
}

func (s *IdeaStore) save(ctx context.Context, idea domain.Idea, createOnly bool) (domain.Idea, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Idea{}, false, err
	}
	if idea.ID < 0 {
		return domain.Idea{}, false, fmt.Errorf("%w: %d", ErrInvalidIdeaID, idea.ID)
	}

	stage, err := domain.ParseStage(string(idea.Status))
	if err != nil {
		return domain.Idea{}, false, err
	}
	idea.Status = stage

	s.mu.Lock()
	defer s.mu.Unlock()

	if idea.ID == 0 {
		id, err := s.nextIDLocked()
		if err != nil {
			return domain.Idea{}, false, err
		}
		idea.ID = id
	}

	created := false
	prev, err := s.read(idea.ID)
	switch {
	case errors.Is(err, ErrIdeaNotFound):
		created = true
	case createOnly && (err == nil || errors.Is(err, ErrIdeaCorrupt)):
		return domain.Idea{}, false, fmt.Errorf("%w: %d", ErrIdeaExists, idea.ID)
	case errors.Is(err, ErrIdeaCorrupt):
		s.log.Warn("overwriting unparsable idea file",
			logger.Int64("id", idea.ID),
			logger.Error(err))
	case err != nil:
		return domain.Idea{}, false, err
	default:
		if from, perr := domain.ParseStage(string(prev.Status)); perr == nil {
			if err := domain.CheckTransition(from, stage); err != nil {
				return domain.Idea{}, false, err
			}
		}
	}

	if err := s.writeLocked(idea); err != nil {
		return domain.Idea{}, false, err
	}
	return idea, created, nil
}

// Advance moves an idea one stage forward. Advancing a posted idea is a
// no-op: advanced is false and nothing is written.
func (s *IdeaStore) Advance(ctx context.Context, id int64) (idea domain.Idea, advanced bool, err error) {
	if err := ctx.Err(); err != nil {
		return domain.Idea{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idea, err = s.read(id)
	if err != nil {
		return domain.Idea{}, false, err
	}
	if idea.Status == "" {
		idea.Status = domain.StageIdeas
	}
	if !idea.Advance() {
		return idea, false, nil
	}

	if err := s.writeLocked(idea); err != nil {
		return domain.Idea{}, false, err
	}
	return idea, true, nil
}

func (s *IdeaStore) writeLocked(idea domain.Idea) error {
	if err := s.Init(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idea, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode idea %d: %w", idea.ID, err)
	}
	if err := writeAtomic(s.fs, s.jsonPath(idea.ID), data, filePerm); err != nil {
		return err
	}
	if err := writeAtomic(s.fs, s.markdownPath(idea.ID), []byte(idea.Markdown()), filePerm); err != nil {
		return err
	}
	return nil
}

// nextIDLocked returns the current time in milliseconds, bumped past the
// last assigned id and any file already on disk.
func (s *IdeaStore) nextIDLocked() (int64, error) {
	candidate := s.now().UnixMilli()
	if candidate <= s.lastID {
		candidate = s.lastID + 1
	}
	for {
		exists, err := afero.Exists(s.fs, s.jsonPath(candidate))
		if err != nil {
			return 0, fmt.Errorf("failed to check idea id %d: %w", candidate, err)
		}
		if !exists {
			break
		}
		candidate++
	}
	s.lastID = candidate
	return candidate, nil
}
