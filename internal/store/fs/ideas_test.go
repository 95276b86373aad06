package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

const testIdeasDir = "/brain/content/ideas"

func newTestIdeaStore(t *testing.T) (*IdeaStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s := NewIdeaStore(fsys, testIdeasDir, logger.Nop())
	require.NoError(t, s.Init())
	return s, fsys
}

func TestIdeaStore_SaveAssignsIDAndWritesBothFiles(t *testing.T) {
	s, fsys := newTestIdeaStore(t)
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	saved, created, err := s.Save(context.Background(), domain.Idea{
		Title: "Post about caching",
		Type:  "thread",
		Date:  "2026-10-19",
		Notes: "LRU vs LFU",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1_700_000_000_000), saved.ID)
	assert.Equal(t, domain.StageIdeas, saved.Status)

	raw, err := afero.ReadFile(fsys, testIdeasDir+"/idea-1700000000000.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"title\": \"Post about caching\"")

	md, err := afero.ReadFile(fsys, testIdeasDir+"/idea-1700000000000.md")
	require.NoError(t, err)
	assert.Equal(t, "# Post about caching\n\n**Type:** thread\n**Date:** 2026-10-19\n**Status:** ideas\n\n## Notes\nLRU vs LFU", string(md))
}

func TestIdeaStore_SaveBumpsCollidingIDs(t *testing.T) {
	s, _ := newTestIdeaStore(t)
	s.now = func() time.Time { return time.UnixMilli(42) }

	ctx := context.Background()
	first, _, err := s.Save(ctx, domain.Idea{Title: "a"})
	require.NoError(t, err)
	second, _, err := s.Save(ctx, domain.Idea{Title: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(42), first.ID)
	assert.Equal(t, int64(43), second.ID)
}

func TestIdeaStore_ConcurrentSavesGetUniqueIDs(t *testing.T) {
	s, _ := newTestIdeaStore(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			saved, _, err := s.Save(ctx, domain.Idea{Title: fmt.Sprintf("idea %d", i)})
			if err != nil {
				t.Errorf("Save() error = %v", err)
				return
			}
			ids <- saved.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	ideas, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ideas, n)
}

func TestIdeaStore_OverwriteKeepsSingleEntry(t *testing.T) {
	s, fsys := newTestIdeaStore(t)
	ctx := context.Background()

	first, created, err := s.Save(ctx, domain.Idea{ID: 7, Title: "draft title"})
	require.NoError(t, err)
	require.True(t, created)

	first.Title = "final title"
	_, created, err = s.Save(ctx, first)
	require.NoError(t, err)
	assert.False(t, created)

	ideas, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, "final title", ideas[0].Title)

	md, err := afero.ReadFile(fsys, testIdeasDir+"/idea-7.md")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# final title\n"))
}

func TestIdeaStore_SaveStatusRules(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.Stage
		to      domain.Stage
		wantErr error
	}{
		{name: "stay", from: domain.StageDrafts, to: domain.StageDrafts},
		{name: "one step forward", from: domain.StageIdeas, to: domain.StageDrafts},
		{name: "skip", from: domain.StageIdeas, to: domain.StageScheduled, wantErr: domain.ErrInvalidTransition},
		{name: "backward", from: domain.StagePosted, to: domain.StageDrafts, wantErr: domain.ErrInvalidTransition},
		{name: "unknown", from: domain.StageIdeas, to: "archived", wantErr: domain.ErrUnknownStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestIdeaStore(t)
			ctx := context.Background()

			_, _, err := s.Save(ctx, domain.Idea{ID: 1, Title: "t", Status: tt.from})
			require.NoError(t, err)

			_, _, err = s.Save(ctx, domain.Idea{ID: 1, Title: "t", Status: tt.to})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				got, gerr := s.Get(ctx, 1)
				require.NoError(t, gerr)
				assert.Equal(t, tt.from, got.Status, "rejected save must not write")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIdeaStore_ListSkipsCorruptFiles(t *testing.T) {
	s, fsys := newTestIdeaStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, domain.Idea{ID: 1, Title: "good"})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, testIdeasDir+"/idea-2.json", []byte("{not json"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, testIdeasDir+"/.idea-3.json.tmp-123", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, testIdeasDir+"/README.md", []byte("# notes"), 0o644))

	ideas, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, "good", ideas[0].Title)
}

func TestIdeaStore_ListMissingDir(t *testing.T) {
	s := NewIdeaStore(afero.NewMemMapFs(), "/nowhere", logger.Nop())

	ideas, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ideas)
	assert.Empty(t, ideas)
}

func TestIdeaStore_GetNotFound(t *testing.T) {
	s, _ := newTestIdeaStore(t)

	_, err := s.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrIdeaNotFound)
}

func TestIdeaStore_AdvanceFlow(t *testing.T) {
	s, fsys := newTestIdeaStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, domain.Idea{ID: 5, Title: "t"})
	require.NoError(t, err)

	for _, want := range []domain.Stage{domain.StageDrafts, domain.StageScheduled, domain.StagePosted} {
		idea, advanced, err := s.Advance(ctx, 5)
		require.NoError(t, err)
		assert.True(t, advanced)
		assert.Equal(t, want, idea.Status)
	}

	before, err := afero.ReadFile(fsys, testIdeasDir+"/idea-5.json")
	require.NoError(t, err)
	info, err := fsys.Stat(testIdeasDir + "/idea-5.json")
	require.NoError(t, err)

	idea, advanced, err := s.Advance(ctx, 5)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, domain.StagePosted, idea.Status)

	after, err := afero.ReadFile(fsys, testIdeasDir+"/idea-5.json")
	require.NoError(t, err)
	info2, err := fsys.Stat(testIdeasDir + "/idea-5.json")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, info.ModTime(), info2.ModTime(), "advancing a posted idea must not write")
}

func TestIdeaStore_AdvanceNotFound(t *testing.T) {
	s, _ := newTestIdeaStore(t)

	_, _, err := s.Advance(context.Background(), 404)
	assert.ErrorIs(t, err, ErrIdeaNotFound)
}

func TestIdeaStore_SaveKeepsUnknownFields(t *testing.T) {
	s, fsys := newTestIdeaStore(t)

	var idea domain.Idea
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"title":"t","color":"red"}`), &idea))

	_, _, err := s.Save(context.Background(), idea)
	require.NoError(t, err)

	raw, err := afero.ReadFile(fsys, testIdeasDir+"/idea-3.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"color": "red"`)
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile(".render_queue.json.tmp-123"))
	assert.False(t, IsTempFile("idea-1.json"))
	assert.False(t, IsTempFile("notes.tmp-1"))
}

func TestIdeaStore_SaveRejectsNegativeID(t *testing.T) {
	s, fsys := newTestIdeaStore(t)

	_, _, err := s.Save(context.Background(), domain.Idea{ID: -5, Title: "nope"})
	require.ErrorIs(t, err, ErrInvalidIdeaID)

	entries, err := afero.ReadDir(fsys, testIdeasDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written")
}

func TestIdeaStore_CreateNeverOverwrites(t *testing.T) {
	s, _ := newTestIdeaStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, domain.Idea{ID: 7, Title: "edited by hand", Status: domain.StageDrafts})
	require.NoError(t, err)

	_, err = s.Create(ctx, domain.Idea{ID: 7, Title: "from the scout"})
	require.ErrorIs(t, err, ErrIdeaExists)

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "edited by hand", got.Title)
	assert.Equal(t, domain.StageDrafts, got.Status)
}

func TestIdeaStore_CreateRefusesCorruptFile(t *testing.T) {
	s, fsys := newTestIdeaStore(t)
	require.NoError(t, afero.WriteFile(fsys, testIdeasDir+"/idea-8.json", []byte("{broken"), 0o644))

	_, err := s.Create(context.Background(), domain.Idea{ID: 8, Title: "x"})
	require.ErrorIs(t, err, ErrIdeaExists)

	raw, err := afero.ReadFile(fsys, testIdeasDir+"/idea-8.json")
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(raw))
}

func TestIdeaStore_ConcurrentCreatesOneWinner(t *testing.T) {
	s, _ := newTestIdeaStore(t)
	ctx := context.Background()

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, domain.Idea{ID: 99, Title: fmt.Sprintf("writer %d", i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrIdeaExists)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
