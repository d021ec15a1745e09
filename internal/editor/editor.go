// Package editor implements range selection for a clip being edited
// against its source transcript.
//
// A selection is unset, a concrete range, or a single pinned bound.
// Clicking a caption row moves one of the two bounds: rows before the
// current start extend the clip backwards, every other row moves the end.
// The explicit start/end actions pin only their own bound regardless of
// the current state. Nothing here keeps Start below End; the browser shows
// what the user picked.
package editor

import (
	"errors"
	"fmt"
	"math"

	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/timecode"
	"github.com/clipper/clipper-server/internal/transcript"
)

// Action selects which transition a caption click performs.
type Action string

const (
	ActionAuto  Action = "auto"
	ActionStart Action = "start"
	ActionEnd   Action = "end"
)

var ErrUnknownAction = errors.New("unknown editor action")

// Selection is the clip's current time range in whole seconds. Start and
// End are meaningful only while their bound is pinned.
type Selection struct {
	hasStart bool
	hasEnd   bool
	Start    float64
	End      float64
}

func Unset() Selection {
	return Selection{}
}

func Range(start, end float64) Selection {
	return Selection{hasStart: true, hasEnd: true, Start: start, End: end}
}

// IsSet reports whether both bounds are pinned.
func (s Selection) IsSet() bool {
	return s.hasStart && s.hasEnd
}

func (s Selection) HasStart() bool { return s.hasStart }

func (s Selection) HasEnd() bool { return s.hasEnd }

// FromClip builds a selection from a clip's stored times. A clip with
// neither time is unset and a clip with one time pins only that bound;
// "0:00"-"0:00" is a real range.
func FromClip(start, end timecode.Value) (Selection, error) {
	var s Selection
	if !start.IsZero() {
		sec, err := start.Seconds()
		if err != nil {
			return Selection{}, fmt.Errorf("start time: %w", err)
		}
		s.Start, s.hasStart = sec, true
	}
	if !end.IsZero() {
		sec, err := end.Seconds()
		if err != nil {
			return Selection{}, fmt.Errorf("end time: %w", err)
		}
		s.End, s.hasEnd = sec, true
	}
	return s, nil
}

// Select applies the click heuristic for caption e. A selection with only
// an end takes the row as its start.
func (s Selection) Select(e transcript.Entry) Selection {
	t := math.Floor(e.Start)
	switch {
	case !s.hasStart && !s.hasEnd:
		return Range(t, math.Floor(e.End()))
	case !s.hasStart:
		s.Start, s.hasStart = t, true
		return s
	case t < s.Start:
		s.Start = t
		return s
	}
	s.End, s.hasEnd = math.Floor(e.End()), true
	return s
}

// SetStart pins the start to the caption's start. The end is left as it
// was, unpinned included.
func (s Selection) SetStart(e transcript.Entry) Selection {
	s.Start, s.hasStart = math.Floor(e.Start), true
	return s
}

// SetEnd pins the end to the caption's end.
func (s Selection) SetEnd(e transcript.Entry) Selection {
	s.End, s.hasEnd = math.Floor(e.End()), true
	return s
}

// Do dispatches on action. An empty action is treated as ActionAuto.
func (s Selection) Do(action Action, e transcript.Entry) (Selection, error) {
	switch action {
	case ActionAuto, "":
		return s.Select(e), nil
	case ActionStart:
		return s.SetStart(e), nil
	case ActionEnd:
		return s.SetEnd(e), nil
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Apply writes the pinned bounds into the clip's display times. Unpinned
// bounds keep the clip's value.
func (s Selection) Apply(c project.Clip) project.Clip {
	if s.hasStart {
		c.StartTime = timecode.String(timecode.Format(s.Start))
	}
	if s.hasEnd {
		c.EndTime = timecode.String(timecode.Format(s.End))
	}
	return c
}

// Marked returns the transcript rows highlighted as inside the selection.
func (s Selection) Marked(entries []transcript.Entry) []transcript.Entry {
	if !s.IsSet() {
		return []transcript.Entry{}
	}
	return transcript.Overlapping(entries, s.Start, s.End)
}
