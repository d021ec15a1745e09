// Package project owns the list of saved analysis sessions and the
// editable workspace derived from the active one.
//
// The list is written to on-device storage under a single key after every
// change. Projects that belong to a signed-in user are also pushed to the
// remote mirror; those pushes run in the background and never fail the
// calling operation. Pushes for one project are sent one at a time and
// always carry the newest copy, so a slow push never lands after a newer
// one.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipper/clipper-server/internal/logging"
	"github.com/clipper/clipper-server/internal/transcript"
)

// StorageKey is the local storage key holding the serialized project list.
const StorageKey = "clipper_projects"

var (
	ErrNotFound      = errors.New("not found")
	ErrAmbiguousClip = errors.New("clip title matches more than one clip")
)

// LocalStorage is the on-device key/value store.
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Mirror receives copies of projects owned by a signed-in user.
type Mirror interface {
	SaveProject(ctx context.Context, p Project) error
}

type SyncReport struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type Store struct {
	mu        sync.Mutex
	storage   LocalStorage
	mirror    Mirror
	logger    *slog.Logger
	projects  []Project
	workspace Workspace
	lanes     map[string]*pushLane
	pending   sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func NewStore(storage LocalStorage, mirror Mirror, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		storage:   storage,
		mirror:    mirror,
		logger:    logging.WithComponent(logger, "project-store"),
		workspace: emptyWorkspace(),
		lanes:     make(map[string]*pushLane),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Load replaces the in-memory list with the stored one. Unreadable JSON
// is logged and treated as an empty list.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("read projects: %w", err)
	}

	var projects []Project
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &projects); err != nil {
			s.logger.Warn("stored projects are not valid JSON, starting empty", "error", err)
			projects = nil
		}
	}

	s.mu.Lock()
	s.projects = projects
	s.mu.Unlock()

	s.logger.Info("projects loaded", "count", len(projects))
	return nil
}

// Create records a fresh analysis as a new active project.
func (s *Store) Create(ctx context.Context, videoURL string, clips []Clip, entries []transcript.Entry, userID string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clips = cloneClips(clips)
	for i := range clips {
		if clips[i].ID == "" {
			clips[i].ID = s.newID()
		}
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}

	p := Project{
		ID:         s.newID(),
		UserID:     userID,
		Name:       "Analysis: " + nameFromURL(videoURL),
		URL:        videoURL,
		Clips:      clips,
		Transcript: cloneEntries(entries),
		CreatedAt:  s.now(),
	}

	prevWorkspace := s.workspace
	s.projects = append([]Project{p}, s.projects...)
	s.activate(p)

	if err := s.persistLocked(ctx); err != nil {
		s.projects = s.projects[1:]
		s.workspace = prevWorkspace
		return Project{}, err
	}

	logging.WithProjectID(s.logger, p.ID).Info("project created", "clips", len(p.Clips))
	s.mirrorAsync(p)
	return cloneProject(p), nil
}

// Persist writes the project list to local storage. An empty list is
// never written, so removing the last project leaves the previous value
// in storage.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if len(s.projects) == 0 {
		return nil
	}
	data, err := json.Marshal(s.projects)
	if err != nil {
		return fmt.Errorf("encode projects: %w", err)
	}
	if err := s.storage.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("write projects: %w", err)
	}
	return nil
}

// UpdateClip merges patch into one clip of a project and returns the
// updated clip.
func (s *Store) UpdateClip(ctx context.Context, projectID string, ref ClipRef, patch Patch) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi := s.indexOf(projectID)
	if pi < 0 {
		return Clip{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	p := &s.projects[pi]

	ci, err := findClip(p.Clips, ref)
	if err != nil {
		return Clip{}, err
	}

	prevClips, prevWorkspaceClips := cloneClips(p.Clips), s.workspace.Clips
	patch.apply(&p.Clips[ci])
	updated := p.Clips[ci]

	if s.workspace.ActiveProjectID == p.ID {
		s.workspace.Clips = cloneClips(p.Clips)
	}

	if err := s.persistLocked(ctx); err != nil {
		p.Clips = prevClips
		s.workspace.Clips = prevWorkspaceClips
		return Clip{}, err
	}

	logging.WithClipID(logging.WithProjectID(s.logger, p.ID), updated.ID).Info("clip updated")
	s.mirrorAsync(*p)
	return updated, nil
}

func findClip(clips []Clip, ref ClipRef) (int, error) {
	if ref.ID != "" {
		for i, c := range clips {
			if c.ID == ref.ID {
				return i, nil
			}
		}
		return -1, fmt.Errorf("clip %s: %w", ref.ID, ErrNotFound)
	}

	if ref.Title == "" {
		return -1, fmt.Errorf("clip without id or title: %w", ErrNotFound)
	}

	match := -1
	for i, c := range clips {
		if c.Title != ref.Title {
			continue
		}
		if match >= 0 {
			return -1, fmt.Errorf("%q: %w", ref.Title, ErrAmbiguousClip)
		}
		match = i
	}
	if match < 0 {
		return -1, fmt.Errorf("clip %q: %w", ref.Title, ErrNotFound)
	}
	return match, nil
}

// Delete removes a project. Deleting the active project clears the
// workspace.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(projectID)
	if i < 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	prev := s.projects
	s.projects = append(s.projects[:i:i], s.projects[i+1:]...)

	if err := s.persistLocked(ctx); err != nil {
		s.projects = prev
		return err
	}

	if s.workspace.ActiveProjectID == projectID {
		s.workspace = emptyWorkspace()
	}
	delete(s.lanes, projectID)

	logging.WithProjectID(s.logger, projectID).Info("project deleted")
	return nil
}

// SwitchActive loads a project into the workspace and drops any rendered
// clip URL from the previous one.
func (s *Store) SwitchActive(projectID string) (Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(projectID)
	if i < 0 {
		return Workspace{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	s.activate(s.projects[i])
	return s.workspaceCopy(), nil
}

func (s *Store) SetGeneratedClip(url string) {
	s.mu.Lock()
	s.workspace.GeneratedClipURL = url
	s.mu.Unlock()
}

func (s *Store) Workspace() Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceCopy()
}

func (s *Store) List() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = cloneProject(p)
	}
	return out
}

func (s *Store) Get(projectID string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(projectID)
	if i < 0 {
		return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return cloneProject(s.projects[i]), nil
}

// SyncAll assigns unowned projects to userID and pushes every project to
// the mirror, waiting for each result. The store stays usable while the
// pushes run.
func (s *Store) SyncAll(ctx context.Context, userID string) (SyncReport, error) {
	s.mu.Lock()
	var stamped []int
	for i := range s.projects {
		if s.projects[i].UserID == "" {
			s.projects[i].UserID = userID
			stamped = append(stamped, i)
		}
	}

	if err := s.persistLocked(ctx); err != nil {
		for _, i := range stamped {
			s.projects[i].UserID = ""
		}
		s.mu.Unlock()
		return SyncReport{}, err
	}

	if s.mirror == nil {
		report := SyncReport{Synced: len(s.projects)}
		s.mu.Unlock()
		return report, nil
	}

	lanes := make([]*pushLane, 0, len(s.projects))
	for _, p := range s.projects {
		lanes = append(lanes, s.queueLocked(p))
	}
	s.mu.Unlock()

	var report SyncReport
	for _, lane := range lanes {
		if err := s.push(ctx, lane); err != nil {
			logging.WithProjectID(s.logger, lane.projectID).Warn("project sync failed", "error", err)
			report.Failed++
			continue
		}
		report.Synced++
	}

	s.logger.Info("projects synced", "synced", report.Synced, "failed", report.Failed)
	return report, nil
}

// Wait blocks until background mirror pushes have finished.
func (s *Store) Wait() {
	s.pending.Wait()
}

// pushLane serializes mirror pushes for one project. latest, version and
// sent are guarded by the store mutex.
type pushLane struct {
	send      sync.Mutex
	projectID string
	latest    Project
	version   uint64
	sent      uint64
}

// queueLocked records p as the newest copy to push. Callers hold s.mu.
func (s *Store) queueLocked(p Project) *pushLane {
	lane := s.lanes[p.ID]
	if lane == nil {
		lane = &pushLane{projectID: p.ID}
		s.lanes[p.ID] = lane
	}
	lane.version++
	lane.latest = cloneProject(p)
	return lane
}

// push sends the newest queued copy unless a previous push already
// delivered it.
func (s *Store) push(ctx context.Context, lane *pushLane) error {
	lane.send.Lock()
	defer lane.send.Unlock()

	s.mu.Lock()
	p, version, sent := lane.latest, lane.version, lane.sent
	s.mu.Unlock()
	if version <= sent {
		return nil
	}

	if err := s.mirror.SaveProject(ctx, p); err != nil {
		return err
	}

	s.mu.Lock()
	if version > lane.sent {
		lane.sent = version
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) mirrorAsync(p Project) {
	if s.mirror == nil || p.UserID == "" {
		return
	}

	lane := s.queueLocked(p)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.push(ctx, lane); err != nil {
			logging.WithProjectID(s.logger, lane.projectID).Warn("project mirror failed", "error", err)
		}
	}()
}

func (s *Store) activate(p Project) {
	s.workspace = Workspace{
		ActiveProjectID: p.ID,
		URL:             p.URL,
		Clips:           cloneClips(p.Clips),
		Transcript:      cloneEntries(p.Transcript),
	}
}

func (s *Store) workspaceCopy() Workspace {
	ws := s.workspace
	ws.Clips = cloneClips(ws.Clips)
	ws.Transcript = cloneEntries(ws.Transcript)
	return ws
}

func (s *Store) indexOf(projectID string) int {
	for i, p := range s.projects {
		if p.ID == projectID {
			return i
		}
	}
	return -1
}

func emptyWorkspace() Workspace {
	return Workspace{Clips: []Clip{}, Transcript: []transcript.Entry{}}
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "Video"
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	return "Video"
}
