// Package transcript holds the caption entries produced by the worker and
// the time-window filters used when rendering and editing clips.
package transcript

import "strings"

// Entry is one caption line. Start and Duration are seconds.
type Entry struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

func (e Entry) End() float64 {
	return e.Start + e.Duration
}

// Overlaps reports whether [Start, End) intersects the half-open window
// [start, end).
func (e Entry) Overlaps(start, end float64) bool {
	return e.End() > start && e.Start < end
}

// Overlapping returns the entries that intersect [start, end), in their
// original order. The result is never nil.
func Overlapping(entries []Entry, start, end float64) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	return out
}

// Search keeps entries whose text contains term, ignoring case. An empty
// term keeps everything.
func Search(entries []Entry, term string) []Entry {
	if term == "" {
		return append([]Entry(nil), entries...)
	}
	needle := strings.ToLower(term)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Text), needle) {
			out = append(out, e)
		}
	}
	return out
}
