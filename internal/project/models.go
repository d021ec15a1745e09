package project

import (
	"time"

	"github.com/clipper/clipper-server/internal/timecode"
	"github.com/clipper/clipper-server/internal/transcript"
)

// Clip is a suggested segment of the source video. URL stays empty until
// the worker has rendered it.
type Clip struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Reason       string         `json:"reason,omitempty"`
	StartTime    timecode.Value `json:"start_time"`
	EndTime      timecode.Value `json:"end_time"`
	AspectRatio  string         `json:"aspect_ratio,omitempty"`
	VideoQuality string         `json:"video_quality,omitempty"`
	FontSize     int            `json:"fontSize,omitempty"`
	FontColor    string         `json:"fontColor,omitempty"`
	BgColor      string         `json:"bgColor,omitempty"`
	URL          string         `json:"url,omitempty"`
}

type Project struct {
	ID         string             `json:"id"`
	UserID     string             `json:"userId,omitempty"`
	Name       string             `json:"name"`
	URL        string             `json:"url"`
	Clips      []Clip             `json:"clips"`
	Transcript []transcript.Entry `json:"transcript"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// Workspace is the editable copy of the active project.
type Workspace struct {
	ActiveProjectID  string             `json:"activeProjectId,omitempty"`
	URL              string             `json:"url,omitempty"`
	Clips            []Clip             `json:"clips"`
	Transcript       []transcript.Entry `json:"transcript"`
	GeneratedClipURL string             `json:"generatedClipUrl,omitempty"`
}

// ClipRef identifies a clip inside a project. Title is only consulted
// when ID is empty.
type ClipRef struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// Patch holds the fields merged into a clip. Nil fields are left alone.
type Patch struct {
	URL          *string         `json:"url,omitempty"`
	Title        *string         `json:"title,omitempty"`
	StartTime    *timecode.Value `json:"start_time,omitempty"`
	EndTime      *timecode.Value `json:"end_time,omitempty"`
	AspectRatio  *string         `json:"aspect_ratio,omitempty"`
	VideoQuality *string         `json:"video_quality,omitempty"`
	FontSize     *int            `json:"fontSize,omitempty"`
	FontColor    *string         `json:"fontColor,omitempty"`
	BgColor      *string         `json:"bgColor,omitempty"`
}

// PatchFromClip builds the merge applied after a render: the artifact URL
// plus every non-empty field of the edited clip.
func PatchFromClip(url string, edited Clip) Patch {
	p := Patch{}
	if url != "" {
		p.URL = &url
	}
	if edited.Title != "" {
		p.Title = &edited.Title
	}
	if !edited.StartTime.IsZero() {
		v := edited.StartTime
		p.StartTime = &v
	}
	if !edited.EndTime.IsZero() {
		v := edited.EndTime
		p.EndTime = &v
	}
	if edited.AspectRatio != "" {
		p.AspectRatio = &edited.AspectRatio
	}
	if edited.VideoQuality != "" {
		p.VideoQuality = &edited.VideoQuality
	}
	if edited.FontSize != 0 {
		p.FontSize = &edited.FontSize
	}
	if edited.FontColor != "" {
		p.FontColor = &edited.FontColor
	}
	if edited.BgColor != "" {
		p.BgColor = &edited.BgColor
	}
	return p
}

func (p Patch) apply(c *Clip) {
	if p.URL != nil {
		c.URL = *p.URL
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.StartTime != nil {
		c.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		c.EndTime = *p.EndTime
	}
	if p.AspectRatio != nil {
		c.AspectRatio = *p.AspectRatio
	}
	if p.VideoQuality != nil {
		c.VideoQuality = *p.VideoQuality
	}
	if p.FontSize != nil {
		c.FontSize = *p.FontSize
	}
	if p.FontColor != nil {
		c.FontColor = *p.FontColor
	}
	if p.BgColor != nil {
		c.BgColor = *p.BgColor
	}
}

func cloneClips(clips []Clip) []Clip {
	out := make([]Clip, len(clips))
	copy(out, clips)
	return out
}

func cloneEntries(entries []transcript.Entry) []transcript.Entry {
	out := make([]transcript.Entry, len(entries))
	copy(out, entries)
	return out
}

func cloneProject(p Project) Project {
	p.Clips = cloneClips(p.Clips)
	p.Transcript = cloneEntries(p.Transcript)
	return p
}
