package api

import (
	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/mirror"
	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/transcript"
)

type HealthResponse struct {
	Status   string              `json:"status"`
	Version  string              `json:"version"`
	UptimeS  int64               `json:"uptime_s"`
	DeviceID string              `json:"device_id"`
	Mirror   string              `json:"mirror"`
	Outbox   *mirror.OutboxStats `json:"outbox,omitempty"`
}

type OutboxStatusResponse struct {
	Running bool                `json:"running"`
	Paused  bool                `json:"paused"`
	Stats   *mirror.OutboxStats `json:"stats,omitempty"`
}

type ProcessRequest struct {
	URL string `json:"url"`
}

type ProcessResponse struct {
	Clips      []project.Clip     `json:"clips"`
	Transcript []transcript.Entry `json:"transcript"`
	ProjectID  string             `json:"projectId,omitempty"`
}

// ClipRequest is a render request. Times and format come from Clip; the
// caption style comes from EditingClip when the browser sends one.
type ClipRequest struct {
	URL         string             `json:"url"`
	Clip        *project.Clip      `json:"clip"`
	Transcript  []transcript.Entry `json:"transcript"`
	EditingClip *project.Clip      `json:"editingClip,omitempty"`
	ProjectID   string             `json:"projectId,omitempty"`
}

type UploadRequest struct {
	VideoURL    string `json:"videoUrl"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	VideoID  string `json:"videoId"`
	VideoURL string `json:"videoUrl"`
}

type ProjectsResponse struct {
	Projects []project.Project `json:"projects"`
}

type SyncUserRequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
	ImageURL  string `json:"imageUrl" validate:"omitempty,url"`
}

type SyncUserResponse struct {
	User     *identity.User `json:"user"`
	Mirrored bool           `json:"mirrored"`
}

type SelectRequest struct {
	Clip       project.Clip       `json:"clip"`
	Caption    transcript.Entry   `json:"caption"`
	Action     string             `json:"action" validate:"omitempty,oneof=auto start end"`
	Transcript []transcript.Entry `json:"transcript"`
}

type SelectResponse struct {
	Clip   project.Clip       `json:"clip"`
	Marked []transcript.Entry `json:"marked"`
}

type SearchResponse struct {
	Entries []transcript.Entry `json:"entries"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}
