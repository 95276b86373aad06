package domain

import (
	"errors"
	"fmt"
)

// Stage is the position of an idea on the board.
type Stage string

const (
	StageIdeas     Stage = "ideas"
	StageDrafts    Stage = "drafts"
	StageScheduled Stage = "scheduled"
	StagePosted    Stage = "posted"
)

// Flow is the only legal ordering of stages.
var Flow = []Stage{StageIdeas, StageDrafts, StageScheduled, StagePosted}

var (
	// ErrUnknownStage is returned for a status outside Flow.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrInvalidTransition is returned for a backward move or a skipped stage.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// ParseStage maps a raw status to a Stage. Empty means StageIdeas.
func ParseStage(raw string) (Stage, error) {
	if raw == "" {
		return StageIdeas, nil
	}
	s := Stage(raw)
	if s.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, raw)
	}
	return s, nil
}

func (s Stage) index() int {
	for i, f := range Flow {
		if f == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the four stages.
func (s Stage) Valid() bool { return s.index() >= 0 }

// Next returns the following stage. ok is false for StagePosted.
func (s Stage) Next() (next Stage, ok bool) {
	i := s.index()
	if i < 0 || i == len(Flow)-1 {
		return s, false
	}
	return Flow[i+1], true
}

// CheckTransition allows staying put or moving exactly one stage forward.
func CheckTransition(from, to Stage) error {
	if from == to {
		return nil
	}
	if next, ok := from.Next(); ok && next == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
