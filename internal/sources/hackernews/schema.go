package hackernews

// Story is the subset of a Hacker News item the scout uses.
// See https://github.com/HackerNews/API#items.
type Story struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Score   int    `json:"score"`
	By      string `json:"by,omitempty"`
	Time    int64  `json:"time,omitempty"`
	Dead    bool   `json:"dead,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// ScoutFile is the optional yaml file overriding the configured keywords.
//
//	keywords: [AI, LLM, Agent]
//	limit: 100
type ScoutFile struct {
	Keywords []string `yaml:"keywords"`
	Limit    int      `yaml:"limit,omitempty"`
}
