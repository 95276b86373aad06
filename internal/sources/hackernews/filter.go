package hackernews

import "strings"

// Filter keeps stories whose title contains any keyword, ignoring case.
// Matching is a plain substring test, so "AI" also matches "Email".
func Filter(stories []Story, keywords []string) []Story {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	var out []Story
	for _, s := range stories {
		title := strings.ToLower(s.Title)
		for _, kw := range lowered {
			if strings.Contains(title, kw) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
