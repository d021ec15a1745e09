package editor

import (
	"errors"
	"testing"

	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/timecode"
	"github.com/clipper/clipper-server/internal/transcript"
)

func entry(start, duration float64) transcript.Entry {
	return transcript.Entry{Start: start, Duration: duration, Text: "line"}
}

func TestSelect_Sequence(t *testing.T) {
	s := Unset()

	s = s.Select(entry(30, 5))
	if !s.IsSet() || s.Start != 30 {
		t.Fatalf("after first select: %+v, want start 30", s)
	}

	s = s.Select(entry(10, 3))
	if s.Start != 10 {
		t.Errorf("start = %v, want 10 (earlier row extends start)", s.Start)
	}
	if s.End != 35 {
		t.Errorf("end = %v, want unchanged 35", s.End)
	}

	s = s.Select(entry(50, 5))
	if s.End != 55 {
		t.Errorf("end = %v, want 55", s.End)
	}
	if s.Start != 10 {
		t.Errorf("start = %v, want unchanged 10", s.Start)
	}
}

func TestSelect_FloorsFractionalTimes(t *testing.T) {
	s := Unset().Select(entry(12.7, 3.6))
	if s.Start != 12 || s.End != 16 {
		t.Errorf("selection = %v-%v, want 12-16", s.Start, s.End)
	}
}

func TestSelect_SameStartMovesEnd(t *testing.T) {
	s := Range(20, 25).Select(entry(20, 4))
	if s.Start != 20 || s.End != 24 {
		t.Errorf("selection = %v-%v, want 20-24", s.Start, s.End)
	}
}

// A zeroed clip is a real range, so a later row moves its end rather
// than resetting the start.
func TestSelect_ZeroRangeIsNotUnset(t *testing.T) {
	s := Range(0, 0).Select(entry(30, 5))
	if s.Start != 0 || s.End != 35 {
		t.Errorf("selection = %v-%v, want 0-35", s.Start, s.End)
	}
}

func TestSetStartSetEnd_Pin(t *testing.T) {
	s := Range(10, 20)

	s = s.SetStart(entry(40, 2))
	if s.Start != 40 || s.End != 20 {
		t.Errorf("after SetStart = %v-%v, want 40-20 (no ordering enforced)", s.Start, s.End)
	}

	s = s.SetEnd(entry(5, 2))
	if s.End != 7 {
		t.Errorf("after SetEnd end = %v, want 7", s.End)
	}
}

func TestDo(t *testing.T) {
	s, err := Range(10, 20).Do(ActionEnd, entry(30, 4))
	if err != nil {
		t.Fatalf("Do(end) error = %v", err)
	}
	if s.End != 34 {
		t.Errorf("end = %v, want 34", s.End)
	}

	if _, err := s.Do("middle", entry(1, 1)); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Do(middle) error = %v, want ErrUnknownAction", err)
	}
}

func TestFromClip(t *testing.T) {
	s, err := FromClip(timecode.String(""), timecode.String(""))
	if err != nil {
		t.Fatalf("FromClip(empty) error = %v", err)
	}
	if s.IsSet() {
		t.Error("empty clip times should be unset")
	}

	s, err = FromClip(timecode.String("0:00"), timecode.String("0:00"))
	if err != nil {
		t.Fatalf("FromClip(0:00) error = %v", err)
	}
	if !s.IsSet() {
		t.Error("0:00-0:00 should be a set range")
	}

	s, err = FromClip(timecode.String("1:05"), timecode.Seconds(80))
	if err != nil {
		t.Fatalf("FromClip error = %v", err)
	}
	if s.Start != 65 || s.End != 80 {
		t.Errorf("selection = %v-%v, want 65-80", s.Start, s.End)
	}

	if _, err := FromClip(timecode.String("x:1"), timecode.String("0:10")); !errors.Is(err, timecode.ErrInvalidTime) {
		t.Errorf("FromClip(bad) error = %v, want ErrInvalidTime", err)
	}
}

func TestApply(t *testing.T) {
	clip := project.Clip{ID: "c1", Title: "Intro", StartTime: timecode.String("0:01"), EndTime: timecode.String("0:02")}

	got := Range(65, 130).Apply(clip)
	if got.StartTime.String() != "1:05" || got.EndTime.String() != "2:10" {
		t.Errorf("times = %s-%s, want 1:05-2:10", got.StartTime, got.EndTime)
	}
	if got.ID != "c1" || got.Title != "Intro" {
		t.Errorf("identity fields changed: %+v", got)
	}

	if same := Unset().Apply(clip); same.StartTime.String() != "0:01" {
		t.Errorf("unset Apply changed start to %s", same.StartTime)
	}
}

func TestMarked(t *testing.T) {
	entries := []transcript.Entry{entry(0, 5), entry(5, 5), entry(12, 3), entry(30, 2)}

	got := Range(6, 14).Marked(entries)
	if len(got) != 2 || got[0].Start != 5 || got[1].Start != 12 {
		t.Errorf("Marked = %v, want rows at 5 and 12", got)
	}

	if none := Unset().Marked(entries); len(none) != 0 {
		t.Errorf("unset Marked len = %d, want 0", len(none))
	}
}

func TestSetStartSetEnd_UnsetPinsOneBound(t *testing.T) {
	clip := project.Clip{ID: "c1", StartTime: timecode.String(""), EndTime: timecode.String("")}

	s := Unset().SetStart(entry(40, 5))
	if !s.HasStart() || s.HasEnd() || s.IsSet() {
		t.Fatalf("after SetStart pinned start=%v end=%v, want start only", s.HasStart(), s.HasEnd())
	}
	got := s.Apply(clip)
	if got.StartTime.String() != "0:40" || got.EndTime.String() != "" {
		t.Errorf("times = %q-%q, want 0:40 and empty end", got.StartTime, got.EndTime)
	}
	if marked := s.Marked([]transcript.Entry{entry(40, 5)}); len(marked) != 0 {
		t.Errorf("Marked len = %d, want 0 for a single bound", len(marked))
	}

	e := Unset().SetEnd(entry(40, 5))
	if e.HasStart() || !e.HasEnd() || e.End != 45 {
		t.Fatalf("after SetEnd = %+v, want end 45 only", e)
	}
	if got := e.Apply(clip); got.StartTime.String() != "" || got.EndTime.String() != "0:45" {
		t.Errorf("times = %q-%q, want empty start and 0:45", got.StartTime, got.EndTime)
	}

	if full := s.SetEnd(entry(50, 5)); !full.IsSet() || full.Start != 40 || full.End != 55 {
		t.Errorf("start then end = %+v, want 40-55", full)
	}
}

func TestFromClip_OneTimePinsOneBound(t *testing.T) {
	s, err := FromClip(timecode.String("0:40"), timecode.String(""))
	if err != nil {
		t.Fatalf("FromClip error = %v", err)
	}
	if !s.HasStart() || s.HasEnd() || s.Start != 40 {
		t.Errorf("selection = %+v, want start 40 only", s)
	}

	s = s.Select(entry(50, 5))
	if !s.IsSet() || s.Start != 40 || s.End != 55 {
		t.Errorf("after Select = %+v, want 40-55", s)
	}

	onlyEnd, _ := FromClip(timecode.String(""), timecode.String("1:00"))
	if got := onlyEnd.Select(entry(30, 2)); !got.IsSet() || got.Start != 30 || got.End != 60 {
		t.Errorf("end-only Select = %+v, want 30-60", got)
	}
}
