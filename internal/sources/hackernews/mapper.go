package hackernews

import (
	"fmt"
	"time"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
)

const (
	IdeaType   = "trend"
	IdeaSource = "hn"
	itemURL    = "https://news.ycombinator.com/item?id=%d"
)

// Mapper converts stories to board ideas.
type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// ToIdea keys the idea by the story id, so a story is saved at most once.
func (m *Mapper) ToIdea(s Story, now time.Time) domain.Idea {
	link := s.URL
	if link == "" {
		link = fmt.Sprintf(itemURL, s.ID)
	}
	return domain.Idea{
		ID:     s.ID,
		Title:  s.Title,
		Type:   IdeaType,
		Date:   now.UTC().Format(time.DateOnly),
		Notes:  fmt.Sprintf("Trending on Hacker News (score %d). Candidate for a review post or a newsletter deep-dive.\n\n%s", s.Score, link),
		URL:    link,
		Status: domain.StageIdeas,
		Score:  float64(s.Score),
		Source: IdeaSource,
	}
}
