package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Idea is one card on the content board.
//
// The JSON file written by the store is the source of truth; the Markdown
// export is derived from it on every save.
type Idea struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is unique across the store. Zero means "not assigned yet".
	ID int64 `json:"id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title string `json:"title"`
	// Type is a free-form tag used for display grouping.
	Type string `json:"type"`
	// Date is a display string. It is never parsed.
	Date  string `json:"date,omitempty"`
	Notes string `json:"notes,omitempty"`
	URL   string `json:"url,omitempty"`

	// ─────────────────────────────
	// Pipeline
	// ─────────────────────────────

	Status Stage `json:"status"`
	// Score only orders the ideas column.
	Score float64 `json:"score,omitempty"`
	// Source tags where the idea came from, e.g. "hn".
	Source string `json:"source,omitempty"`

	// Extra keeps fields this server does not know about so a save
	// round-trips them untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

var ideaKeys = []string{"id", "title", "type", "date", "notes", "url", "status", "score", "source"}

type ideaAlias Idea

func (i *Idea) UnmarshalJSON(data []byte) error {
	var a ideaAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, ideaKeys)
	if err != nil {
		return err
	}
	a.Extra = extra
	*i = Idea(a)
	return nil
}

func (i Idea) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(ideaAlias(i))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, i.Extra)
}

// Markdown renders the companion export file.
func (i Idea) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", i.Title)
	fmt.Fprintf(&b, "**Type:** %s\n", i.Type)
	fmt.Fprintf(&b, "**Date:** %s\n", i.Date)
	fmt.Fprintf(&b, "**Status:** %s\n\n", i.Status)
	fmt.Fprintf(&b, "## Notes\n%s", i.Notes)
	return b.String()
}

// Advance moves the idea one stage forward. It returns false, leaving the
// idea untouched, when it is already posted.
func (i *Idea) Advance() bool {
	next, ok := i.Status.Next()
	if !ok {
		return false
	}
	i.Status = next
	return true
}
