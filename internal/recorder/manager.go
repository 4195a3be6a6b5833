package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAlreadyWatching is returned when adding a room that already has a
// recorder.
var ErrAlreadyWatching = errors.New("room already has a recorder")

// ErrUnknownRoom is returned when an operation targets a room with no
// recorder.
var ErrUnknownRoom = errors.New("no recorder for room")

type managedRecorder struct {
	rec    *Recorder
	cancel context.CancelFunc
}

// Manager owns one running Recorder per registered room and persists the
// registration set so it survives restarts.
type Manager struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu        sync.RWMutex
	runCtx    context.Context
	recorders map[uint64]*managedRecorder
}

// NewManager returns a manager constructing recorders from cfg and deps.
func NewManager(cfg Config, deps Deps) *Manager {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:       cfg.withDefaults(),
		deps:      deps,
		log:       log,
		recorders: make(map[uint64]*managedRecorder),
	}
}

// Start binds the manager's run context (recorder loops live until it is
// cancelled, not until the request that created them ends) and starts
// recorders for every room registered in the store.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	rooms, err := m.deps.Store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list registered rooms: %w", err)
	}
	for _, reg := range rooms {
		if _, err := m.Watch(ctx, reg.RoomID); err != nil && !errors.Is(err, ErrAlreadyWatching) {
			return err
		}
	}
	return nil
}

// Watch registers roomID and starts a recorder for it. The recorder's loops
// run until the room is unwatched or ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, roomID uint64) (*Recorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.recorders[roomID]; ok {
		return nil, ErrAlreadyWatching
	}
	if _, err := m.deps.Store.RegisterRoom(ctx, roomID); err != nil {
		return nil, fmt.Errorf("register room: %w", err)
	}

	rec := NewRecorder(roomID, m.cfg, m.deps)
	base := m.runCtx
	if base == nil {
		base = context.Background()
	}
	runCtx, cancel := context.WithCancel(base)
	rec.Run(runCtx)
	m.recorders[roomID] = &managedRecorder{rec: rec, cancel: cancel}
	m.log.Info("recorder started", slog.Uint64("room_id", roomID))
	return rec, nil
}

// Unwatch stops the room's recorder and removes its registration. Cached
// archives stay on disk and in the store.
func (m *Manager) Unwatch(ctx context.Context, roomID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.recorders[roomID]
	if !ok {
		return ErrUnknownRoom
	}
	mr.cancel()
	delete(m.recorders, roomID)
	if err := m.deps.Store.UnregisterRoom(ctx, roomID); err != nil && !errors.Is(err, ErrArchiveNotFound) {
		return fmt.Errorf("unregister room: %w", err)
	}
	m.log.Info("recorder stopped", slog.Uint64("room_id", roomID))
	return nil
}

// Get returns the recorder for roomID, if any.
func (m *Manager) Get(roomID uint64) (*Recorder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mr, ok := m.recorders[roomID]
	if !ok {
		return nil, false
	}
	return mr.rec, true
}

// Rooms returns the room IDs with running recorders.
func (m *Manager) Rooms() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, 0, len(m.recorders))
	for id := range m.recorders {
		out = append(out, id)
	}
	return out
}

// LiveSessionCount returns the number of rooms currently live. Used for
// the metrics gauge.
func (m *Manager) LiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, mr := range m.recorders {
		if mr.rec.Live() {
			n++
		}
	}
	return n
}

// Shutdown stops all recorders.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mr := range m.recorders {
		mr.cancel()
		delete(m.recorders, id)
	}
}
