package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/logging"
	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/publish"
	"github.com/clipper/clipper-server/internal/transcript"
	"github.com/clipper/clipper-server/internal/worker"
)

const (
	defaultAspectRatio  = "16:9"
	defaultVideoQuality = "1080p"
	defaultFontSize     = 24
	defaultFontColor    = "#FFFFFF"
	defaultBgColor      = "#000000"
)

const (
	msgNoLinkedToken     = "Failed to retrieve Google OAuth token. Please ensure you are signed in with Google and have granted permissions."
	msgInsufficientScope = `Insufficient permissions. Please ensure you have added the "https://www.googleapis.com/auth/youtube.upload" scope in your Clerk Dashboard > Social Connections > Google, and then Sign Out and Sign In again to grant the permission.`
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()
	renders := newRenderSet()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins))
	r.Use(SessionMiddleware(cfg.Verifier, cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Post("/process", processHandler(cfg))
		r.Post("/clip", clipHandler(cfg, renders))
		r.With(LoopbackGuard()).Get("/download", downloadHandler(cfg))
		r.Post("/upload", uploadHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.With(RequireUser()).Post("/projects/sync", syncProjectsHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))
		r.Post("/projects/{id}/activate", activateProjectHandler(cfg))
		r.Get("/projects/{id}/export.edl", exportProjectHandler(cfg))
		r.Patch("/projects/{id}/clips/{clipId}", updateClipHandler(cfg))

		r.Get("/workspace", workspaceHandler(cfg))
		r.Get("/workspace/transcript", searchTranscriptHandler(cfg))
		r.Post("/editor/select", editorSelectHandler(cfg))

		r.With(RequireUser()).Post("/users/sync", syncUserHandler(cfg))

		r.Route("/outbox", func(r chi.Router) {
			r.Use(LoopbackGuard())
			r.Get("/", outboxStatusHandler(cfg))
			r.Post("/pause", pauseOutboxHandler(cfg))
			r.Post("/resume", resumeOutboxHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		resp := HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
			Mirror:   cfg.MirrorName,
		}
		if cfg.Outbox != nil {
			if stats, err := cfg.Outbox.Stats(r.Context()); err == nil {
				resp.Outbox = &stats
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func processHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.URL == "" {
			WriteError(w, http.StatusBadRequest, "URL is required", "BAD_REQUEST")
			return
		}

		videoID, err := worker.ExtractVideoID(req.URL)
		if errors.Is(err, worker.ErrInvalidURL) {
			WriteError(w, http.StatusBadRequest, "Invalid URL format", "INVALID_URL")
			return
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Could not extract Video ID", "NO_VIDEO_ID")
			return
		}

		result, err := cfg.Worker.Analyze(r.Context(), videoID)
		if err != nil {
			cfg.Logger.Error("analyze failed", "video_id", videoID, "error", err)
			var werr *worker.Error
			if errors.As(err, &werr) {
				WriteError(w, http.StatusBadGateway, "Worker error: "+werr.Body, "WORKER_ERROR")
				return
			}
			WriteError(w, http.StatusBadGateway,
				fmt.Sprintf("Failed to process video. Ensure worker is running at %s.", cfg.WorkerURL),
				"WORKER_UNAVAILABLE")
			return
		}

		resp := ProcessResponse{Clips: result.Clips, Transcript: result.Transcript}

		p, err := cfg.Store.Create(r.Context(), req.URL, result.Clips, result.Transcript, identity.UserID(r.Context()))
		if err != nil {
			cfg.Logger.Warn("failed to save project", "video_id", videoID, "error", err)
		} else {
			resp.Clips = p.Clips
			resp.ProjectID = p.ID
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func clipHandler(cfg ServerConfig, renders *renderSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Clip == nil {
			WriteError(w, http.StatusBadRequest, "clip is required", "BAD_REQUEST")
			return
		}

		start, err := req.Clip.StartTime.Seconds()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip start_time", "BAD_REQUEST")
			return
		}
		end, err := req.Clip.EndTime.Seconds()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid clip end_time", "BAD_REQUEST")
			return
		}

		videoID, err := worker.ExtractVideoID(req.URL)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid URL format", "INVALID_URL")
			return
		}

		styled := *req.Clip
		if req.EditingClip != nil {
			styled = *req.EditingClip
		}

		projectID := req.ProjectID
		if projectID == "" {
			projectID = cfg.Store.Workspace().ActiveProjectID
		}

		key := renderKey(projectID, *req.Clip, start, end)
		if !renders.acquire(key) {
			WriteError(w, http.StatusConflict, "Clip is already rendering", "RENDER_IN_PROGRESS")
			return
		}
		defer renders.release(key)

		logger := logging.WithClipID(logging.WithProjectID(cfg.Logger, projectID), req.Clip.ID)

		result, err := cfg.Worker.RenderClip(r.Context(), worker.ClipRequest{
			VideoID:      videoID,
			StartTime:    start,
			EndTime:      end,
			AspectRatio:  orDefault(req.Clip.AspectRatio, defaultAspectRatio),
			VideoQuality: orDefault(req.Clip.VideoQuality, defaultVideoQuality),
			Captions:     transcript.Overlapping(req.Transcript, start, end),
			CaptionStyle: worker.CaptionStyle{
				FontSize:  orDefaultInt(styled.FontSize, defaultFontSize),
				FontColor: orDefault(styled.FontColor, defaultFontColor),
				BgColor:   orDefault(styled.BgColor, defaultBgColor),
			},
		})
		if err != nil {
			logger.Error("clip render failed", "error", err)
			var werr *worker.Error
			if errors.As(err, &werr) {
				WriteError(w, werr.StatusCode, "Worker error: "+werr.Body, "WORKER_ERROR")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		if result.URL != "" {
			cfg.Store.SetGeneratedClip(result.URL)
			if projectID != "" {
				ref := project.ClipRef{ID: req.Clip.ID, Title: req.Clip.Title}
				if _, err := cfg.Store.UpdateClip(r.Context(), projectID, ref, project.PatchFromClip(result.URL, styled)); err != nil {
					logger.Warn("failed to attach rendered clip", "error", err)
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(result.Raw)
	}
}

func renderKey(projectID string, c project.Clip, start, end float64) string {
	switch {
	case c.ID != "":
		return projectID + "/" + c.ID
	case c.Title != "":
		return projectID + "/title:" + c.Title
	default:
		return fmt.Sprintf("%s/%g-%g", projectID, start, end)
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := r.URL.Query().Get("file")
		if file == "" {
			WriteError(w, http.StatusBadRequest, "File parameter is required", "BAD_REQUEST")
			return
		}
		if strings.ContainsAny(file, "/\\\"\r\n") {
			WriteError(w, http.StatusBadRequest, "Invalid file parameter", "BAD_REQUEST")
			return
		}

		dl, err := cfg.Worker.Download(r.Context(), file)
		if err != nil {
			var werr *worker.Error
			if errors.As(err, &werr) {
				WriteError(w, http.StatusNotFound, "File not found on worker", "NOT_FOUND")
				return
			}
			cfg.Logger.Error("download failed", "file", file, "error", err)
			WriteError(w, http.StatusBadGateway, "Failed to reach worker", "WORKER_UNAVAILABLE")
			return
		}
		defer dl.Body.Close()

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file))
		if dl.ContentLength > 0 {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", dl.ContentLength))
		}
		w.WriteHeader(http.StatusOK)

		n, err := io.Copy(w, dl.Body)
		if err != nil {
			cfg.Logger.Warn("download interrupted", "file", file, "sent", logging.Bytes(n), "error", err)
			return
		}
		cfg.Logger.Info("download served", "file", file, "size", logging.Bytes(n))
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := identity.UserID(r.Context())
		if userID == "" {
			WriteError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
			return
		}

		token, err := cfg.Tokens.GoogleToken(r.Context(), userID)
		if errors.Is(err, identity.ErrNoLinkedToken) || (err == nil && token == "") {
			WriteError(w, http.StatusUnauthorized, msgNoLinkedToken, "NO_LINKED_TOKEN")
			return
		}
		if err != nil {
			cfg.Logger.Error("token lookup failed", "user_id", userID, "error", err)
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		var req UploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoURL == "" {
			WriteError(w, http.StatusBadRequest, "Missing videoUrl", "BAD_REQUEST")
			return
		}

		result, err := cfg.Publisher.Publish(r.Context(), token, publish.Video{
			URL:         req.VideoURL,
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			logging.WithUserID(cfg.Logger, userID).Error("upload failed", "error", err)
			if errors.Is(err, publish.ErrInsufficientScope) {
				WriteError(w, http.StatusForbidden, msgInsufficientScope, "INSUFFICIENT_SCOPE")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, UploadResponse{
			Success:  true,
			VideoID:  result.VideoID,
			VideoURL: result.VideoURL,
		})
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
