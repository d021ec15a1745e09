// Package export renders a project's clip suggestions as a CMX 3600 edit
// decision list for conforming in a desktop editor.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/clipper/clipper-server/internal/project"
)

const DefaultFrameRate = 30.0

// Event is one clip on the EDL timeline. Times are source seconds.
type Event struct {
	Name   string
	Source string
	Start  float64
	End    float64
}

// Events converts the project's clips in order. Clips whose times do not
// parse or whose end is not after the start are returned in skipped by
// title (or id when untitled).
func Events(p project.Project) (events []Event, skipped []string) {
	for _, c := range p.Clips {
		start, errStart := c.StartTime.Seconds()
		end, errEnd := c.EndTime.Seconds()
		if errStart != nil || errEnd != nil || end <= start {
			name := c.Title
			if name == "" {
				name = c.ID
			}
			skipped = append(skipped, name)
			continue
		}

		source := c.URL
		if source == "" {
			source = p.URL
		}
		events = append(events, Event{Name: c.Title, Source: source, Start: start, End: end})
	}
	return events, skipped
}

// GenerateEDL lays events back to back on the record timeline.
func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", SanitizeName(title, 70))}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffset := 0.0
	for i, ev := range events {
		duration := ev.End - ev.Start
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				toTimecode(ev.Start, fps), toTimecode(ev.End, fps),
				toTimecode(recordOffset, fps), toTimecode(recordOffset+duration, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", SanitizeName(ev.Name, 0)),
			fmt.Sprintf("* SOURCE FILE:  %s", ev.Source),
		)
		recordOffset += duration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func toTimecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
