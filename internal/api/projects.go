package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clipper/clipper-server/internal/editor"
	"github.com/clipper/clipper-server/internal/export"
	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/transcript"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: cfg.Store.List()})
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Store.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func activateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := cfg.Store.SwitchActive(chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ws)
	}
}

// exportProjectHandler serves the project's clips as an EDL attachment.
// Clips without a usable range are listed in X-Skipped-Clips.
func exportProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fps := export.DefaultFrameRate
		if raw := r.URL.Query().Get("fps"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 || v > 120 {
				WriteError(w, http.StatusBadRequest, "fps must be between 0 and 120", "BAD_REQUEST")
				return
			}
			fps = v
		}

		p, err := cfg.Store.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}

		events, skipped := export.Events(p)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(p.Name, ".edl")))
		if len(skipped) > 0 {
			w.Header().Set("X-Skipped-Clips", export.SanitizeName(strings.Join(skipped, ", "), 200))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(export.GenerateEDL(events, p.Name, fps)))
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch project.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		ref := project.ClipRef{ID: chi.URLParam(r, "clipId")}
		clip, err := cfg.Store.UpdateClip(r.Context(), chi.URLParam(r, "id"), ref, patch)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, clip)
	}
}

func syncProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := cfg.Store.SyncAll(r.Context(), identity.UserID(r.Context()))
		if err != nil {
			cfg.Logger.Error("project sync failed", "error", err)
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

func workspaceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Store.Workspace())
	}
}

func searchTranscriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := transcript.Search(cfg.Store.Workspace().Transcript, r.URL.Query().Get("q"))
		WriteJSON(w, http.StatusOK, SearchResponse{Entries: entries})
	}
}

func editorSelectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		sel, err := editor.FromClip(req.Clip.StartTime, req.Clip.EndTime)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		sel, err = sel.Do(editor.Action(req.Action), req.Caption)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusOK, SelectResponse{
			Clip:   sel.Apply(req.Clip),
			Marked: sel.Marked(req.Transcript),
		})
	}
}

func syncUserHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncUserRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		userID := identity.UserID(r.Context())
		mirrored, err := cfg.Users.SyncUser(r.Context(), identity.User{
			ID:        userID,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			FullName:  req.FullName,
			ImageURL:  req.ImageURL,
		})
		if err != nil {
			cfg.Logger.Error("user sync failed", "user_id", userID, "error", err)
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		stored, err := cfg.Users.GetUser(r.Context(), userID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, SyncUserResponse{User: stored, Mirrored: mirrored})
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, project.ErrAmbiguousClip):
		WriteError(w, http.StatusConflict, err.Error(), "AMBIGUOUS_CLIP")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
