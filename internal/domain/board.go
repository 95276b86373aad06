package domain

import "sort"

// StageCounts is the per-stage tally served by /api/stats.
type StageCounts struct {
	Ideas     int `json:"ideas"`
	Drafts    int `json:"drafts"`
	Scheduled int `json:"scheduled"`
	Posted    int `json:"posted"`
}

// CountByStage tallies ideas per stage. Ideas with an unknown status are
// not counted.
func CountByStage(ideas []Idea) StageCounts {
	var c StageCounts
	for _, i := range ideas {
		switch i.Status {
		case StageIdeas:
			c.Ideas++
		case StageDrafts:
			c.Drafts++
		case StageScheduled:
			c.Scheduled++
		case StagePosted:
			c.Posted++
		}
	}
	return c
}

// Board groups ideas per column.
type Board struct {
	Ideas     []Idea `json:"ideas"`
	Drafts    []Idea `json:"drafts"`
	Scheduled []Idea `json:"scheduled"`
	Posted    []Idea `json:"posted"`
}

// BuildBoard splits ideas into columns. The ideas column is sorted by score,
// highest first; the other columns keep input order.
func BuildBoard(ideas []Idea) Board {
	b := Board{
		Ideas:     []Idea{},
		Drafts:    []Idea{},
		Scheduled: []Idea{},
		Posted:    []Idea{},
	}
	for _, i := range ideas {
		switch i.Status {
		case StageIdeas:
			b.Ideas = append(b.Ideas, i)
		case StageDrafts:
			b.Drafts = append(b.Drafts, i)
		case StageScheduled:
			b.Scheduled = append(b.Scheduled, i)
		case StagePosted:
			b.Posted = append(b.Posted, i)
		}
	}
	sort.SliceStable(b.Ideas, func(x, y int) bool {
		return b.Ideas[x].Score > b.Ideas[y].Score
	})
	return b
}
