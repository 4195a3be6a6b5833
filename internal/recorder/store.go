package recorder

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Archive is the persisted record of one recorded session. SessionID is the
// timestamp embedded in the session's initialization-segment filename;
// (RoomID, SessionID) uniquely identifies a recording and SessionID is never
// reused within a room.
type Archive struct {
	SessionID uint64    `json:"session_id"`
	RoomID    uint64    `json:"room_id"`
	Title     string    `json:"title"`
	Segments  int64     `json:"segments"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Video is the persisted record of one produced clip file.
type Video struct {
	ID        int64     `json:"id"`
	RoomID    uint64    `json:"room_id"`
	SessionID uint64    `json:"session_id"`
	File      string    `json:"file"`
	Length    float64   `json:"length"`
	CreatedAt time.Time `json:"created_at"`
}

// Registration is the persisted record of a room being watched, so the set
// of recorders survives restarts. Room metadata itself is collected live.
type Registration struct {
	RoomID    uint64    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveStore is the persistence boundary for archive and video metadata.
// Implementations can be in-memory or backed by a relational database; the
// engine never relies on the store for segment-level detail (the filesystem
// is authoritative there).
type ArchiveStore interface {
	// CreateArchive inserts a new archive record. Inserting an existing
	// (sessionID) is not an error: the existing record is returned
	// unchanged, so a restarted ingest cycle can re-register its session.
	CreateArchive(ctx context.Context, sessionID, roomID uint64, title string) (Archive, error)

	// UpdateArchive persists the latest segment count and byte size for an
	// active archive. Returns ErrArchiveNotFound if no record matches.
	UpdateArchive(ctx context.Context, sessionID uint64, segments, bytes int64) error

	// ListArchives returns all archives recorded for a room, oldest first.
	ListArchives(ctx context.Context, roomID uint64) ([]Archive, error)

	// GetArchive returns one archive, or ErrArchiveNotFound.
	GetArchive(ctx context.Context, roomID, sessionID uint64) (Archive, error)

	// DeleteArchive removes an archive record. Returns ErrArchiveNotFound
	// if no record matches.
	DeleteArchive(ctx context.Context, sessionID uint64) error

	// SaveVideo records a produced clip file and returns it with its
	// assigned ID.
	SaveVideo(ctx context.Context, v Video) (Video, error)

	// ListVideos returns all clip records for a room, oldest first.
	ListVideos(ctx context.Context, roomID uint64) ([]Video, error)

	// DeleteVideo removes a clip record. Returns ErrArchiveNotFound if no
	// record matches.
	DeleteVideo(ctx context.Context, id int64) error

	// RegisterRoom persists a recorder registration. Registering an
	// already registered room returns the existing record.
	RegisterRoom(ctx context.Context, roomID uint64) (Registration, error)

	// UnregisterRoom removes a recorder registration. Returns
	// ErrArchiveNotFound if no record matches.
	UnregisterRoom(ctx context.Context, roomID uint64) error

	// ListRooms returns all registered rooms.
	ListRooms(ctx context.Context) ([]Registration, error)
}

// MemoryArchiveStore is a concurrency-safe in-memory ArchiveStore.
type MemoryArchiveStore struct {
	mu       sync.RWMutex
	archives map[uint64]*Archive
	videos   map[int64]*Video
	rooms    map[uint64]Registration
	nextID   int64
}

// NewMemoryArchiveStore returns a new empty in-memory store.
func NewMemoryArchiveStore() *MemoryArchiveStore {
	return &MemoryArchiveStore{
		archives: make(map[uint64]*Archive),
		videos:   make(map[int64]*Video),
		rooms:    make(map[uint64]Registration),
		nextID:   1,
	}
}

// CreateArchive implements ArchiveStore.CreateArchive.
func (s *MemoryArchiveStore) CreateArchive(_ context.Context, sessionID, roomID uint64, title string) (Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.archives[sessionID]; ok {
		return *existing, nil
	}
	a := &Archive{
		SessionID: sessionID,
		RoomID:    roomID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	s.archives[sessionID] = a
	return *a, nil
}

// UpdateArchive implements ArchiveStore.UpdateArchive.
func (s *MemoryArchiveStore) UpdateArchive(_ context.Context, sessionID uint64, segments, bytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.archives[sessionID]
	if !ok {
		return ErrArchiveNotFound
	}
	a.Segments = segments
	a.Bytes = bytes
	return nil
}

// ListArchives implements ArchiveStore.ListArchives.
func (s *MemoryArchiveStore) ListArchives(_ context.Context, roomID uint64) ([]Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Archive, 0)
	for _, a := range s.archives {
		if a.RoomID == roomID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// GetArchive implements ArchiveStore.GetArchive.
func (s *MemoryArchiveStore) GetArchive(_ context.Context, roomID, sessionID uint64) (Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.archives[sessionID]
	if !ok || a.RoomID != roomID {
		return Archive{}, ErrArchiveNotFound
	}
	return *a, nil
}

// DeleteArchive implements ArchiveStore.DeleteArchive.
func (s *MemoryArchiveStore) DeleteArchive(_ context.Context, sessionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archives[sessionID]; !ok {
		return ErrArchiveNotFound
	}
	delete(s.archives, sessionID)
	return nil
}

// SaveVideo implements ArchiveStore.SaveVideo.
func (s *MemoryArchiveStore) SaveVideo(_ context.Context, v Video) (Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.ID = s.nextID
	s.nextID++
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	stored := v
	s.videos[v.ID] = &stored
	return v, nil
}

// ListVideos implements ArchiveStore.ListVideos.
func (s *MemoryArchiveStore) ListVideos(_ context.Context, roomID uint64) ([]Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Video, 0)
	for _, v := range s.videos {
		if v.RoomID == roomID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteVideo implements ArchiveStore.DeleteVideo.
func (s *MemoryArchiveStore) DeleteVideo(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[id]; !ok {
		return ErrArchiveNotFound
	}
	delete(s.videos, id)
	return nil
}

// RegisterRoom implements ArchiveStore.RegisterRoom.
func (s *MemoryArchiveStore) RegisterRoom(_ context.Context, roomID uint64) (Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[roomID]; ok {
		return existing, nil
	}
	reg := Registration{RoomID: roomID, CreatedAt: time.Now().UTC()}
	s.rooms[roomID] = reg
	return reg, nil
}

// UnregisterRoom implements ArchiveStore.UnregisterRoom.
func (s *MemoryArchiveStore) UnregisterRoom(_ context.Context, roomID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return ErrArchiveNotFound
	}
	delete(s.rooms, roomID)
	return nil
}

// ListRooms implements ArchiveStore.ListRooms.
func (s *MemoryArchiveStore) ListRooms(_ context.Context) ([]Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Registration, 0, len(s.rooms))
	for _, reg := range s.rooms {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

var _ ArchiveStore = (*MemoryArchiveStore)(nil)
