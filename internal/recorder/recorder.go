package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"hls-recorder/internal/platform/metrics"
)

// DanmuFeed is the push-socket chat boundary. Subscribe returns a channel of
// messages for the room; the channel closes when the socket drops. The wire
// protocol lives entirely behind this interface.
type DanmuFeed interface {
	Subscribe(ctx context.Context, roomID uint64) (<-chan DanmuMessage, error)
}

// Config controls recorder cadence and storage locations.
type Config struct {
	// CacheDir is the root of the on-disk segment cache; sessions live
	// under <CacheDir>/<room_id>/<session_id>/.
	CacheDir string
	// ClipDir is the default output directory for extracted clips.
	ClipDir string
	// StatusInterval is the offline status poll cadence (default 10s).
	StatusInterval time.Duration
	// LiveInterval is the ingest cycle cadence while live (default 1s).
	LiveInterval time.Duration
	// NotifyStart/NotifyEnd enable live transition notifications.
	NotifyStart bool
	NotifyEnd   bool
}

func (c Config) withDefaults() Config {
	if c.CacheDir == "" {
		c.CacheDir = "cache"
	}
	if c.ClipDir == "" {
		c.ClipDir = "clips"
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 10 * time.Second
	}
	if c.LiveInterval <= 0 {
		c.LiveInterval = time.Second
	}
	return c
}

// Deps bundles the external collaborators a Recorder consumes. Client and
// Store are required; the rest default to reasonable in-process
// implementations when nil. Metrics may be nil to disable metric recording
// (e.g. in tests). Danmu may be nil to disable the chat pass-through.
type Deps struct {
	Client     StreamClient
	Store      ArchiveStore
	Notifier   Notifier
	Events     EventBus
	Transcoder Transcoder
	Danmu      DanmuFeed
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

// Recorder continuously records one room: it polls liveness, ingests the
// live playlist into the on-disk cache, and serves synthesized playlists
// and clips for the active session and past archives.
type Recorder struct {
	roomID     uint64
	cfg        Config
	log        *slog.Logger
	client     StreamClient
	store      ArchiveStore
	notifier   Notifier
	events     EventBus
	transcoder Transcoder
	danmu      DanmuFeed
	metrics    *metrics.Metrics

	session *session
	fetcher *playlistFetcher

	mu   sync.RWMutex
	room RoomStatus
}

// NewRecorder constructs a recorder for roomID. It does not start any
// loops; call Run.
func NewRecorder(roomID uint64, cfg Config, deps Deps) *Recorder {
	cfg = cfg.withDefaults()
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	log := deps.Log.With(slog.Uint64("room_id", roomID))
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: log}
	}
	if deps.Events == nil {
		deps.Events = NewMemoryBus()
	}
	if deps.Transcoder == nil {
		deps.Transcoder = NewFFmpegTranscoder("", log)
	}

	r := &Recorder{
		roomID:     roomID,
		cfg:        cfg,
		log:        log,
		client:     deps.Client,
		store:      deps.Store,
		notifier:   deps.Notifier,
		events:     deps.Events,
		transcoder: deps.Transcoder,
		danmu:      deps.Danmu,
		metrics:    deps.Metrics,
		session:    &session{kind: KindFragmentedMP4},
	}
	r.fetcher = &playlistFetcher{
		client:     deps.Client,
		log:        log,
		revalidate: r.checkStatus,
	}
	return r
}

// RoomID returns the room this recorder watches.
func (r *Recorder) RoomID() uint64 { return r.roomID }

// Room returns the last polled room metadata snapshot.
func (r *Recorder) Room() RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room
}

func (r *Recorder) setRoom(st RoomStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = st
}

// Live reports whether the room is currently live.
func (r *Recorder) Live() bool { return r.session.Live() }

// SessionID returns the active session identity, 0 when none is established.
func (r *Recorder) SessionID() uint64 { return r.session.ID() }

// Run starts the ingestion loop and the danmu pass-through as independent
// goroutines and returns. Both exit when ctx is cancelled; cancellation is
// cooperative, checked between cycles, and never aborts an in-flight
// download.
func (r *Recorder) Run(ctx context.Context) {
	go r.runIngest(ctx)
	go r.runDanmu(ctx)
}

func (r *Recorder) runIngest(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			r.log.Info("ingest loop stopped")
			return
		}
		if r.checkStatus(ctx) {
			for {
				if ctx.Err() != nil {
					r.log.Info("ingest loop stopped")
					return
				}
				if err := r.cycle(ctx); err != nil {
					// Fall back to the outer liveness detection
					// instead of retrying in place.
					r.log.Error("ingest cycle failed",
						slog.Bool("transient", IsTransient(err)),
						slog.String("error", err.Error()))
					break
				}
				if !sleepCtx(ctx, r.cfg.LiveInterval) {
					return
				}
			}
			continue
		}
		if !sleepCtx(ctx, r.cfg.StatusInterval) {
			return
		}
	}
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// checkStatus polls the room and applies live/offline transitions. A failed
// poll is fail-open: the stream is assumed still live so a network blip
// never spuriously clears a working session.
func (r *Recorder) checkStatus(ctx context.Context) bool {
	st, err := r.client.RoomStatus(ctx, r.roomID)
	if err != nil {
		r.log.Warn("status poll failed, assuming still live", slog.String("error", err.Error()))
		r.session.SetLive(true)
		return true
	}

	wasLive := r.session.Live()
	r.setRoom(st)

	if st.IsLive != wasLive {
		if st.IsLive {
			if r.cfg.NotifyStart {
				r.notifier.Notify("Live started", fmt.Sprintf("%s is now live: %s", st.Owner, st.Title))
			}
		} else if r.cfg.NotifyEnd {
			r.notifier.Notify("Live ended", fmt.Sprintf("%s finished streaming", st.Owner))
		}
	}

	if st.IsLive {
		url, kind, err := r.client.ResolvePlayURL(ctx, r.roomID)
		if err != nil {
			r.log.Warn("resolve play url failed", slog.String("error", err.Error()))
		} else {
			r.session.SetStream(url, kind)
		}
	} else if wasLive {
		// Edge-triggered reset: the archive row keeps whatever
		// duration/size were last persisted.
		r.session.Reset()
	}
	r.session.SetLive(st.IsLive)
	return st.IsLive
}

// sessionDir returns the durable directory for a session of this room.
func (r *Recorder) sessionDir(sessionID uint64) string {
	return filepath.Join(r.cfg.CacheDir, strconv.FormatUint(r.roomID, 10), strconv.FormatUint(sessionID, 10))
}

// cycle runs one playlist fetch-and-diff pass: establish session identity
// if needed, fan out downloads for newly listed segments, then persist
// updated counters for the active archive.
func (r *Recorder) cycle(ctx context.Context) error {
	profile := profileFor(r.session.Kind())

	if _, ok := r.session.Header(); !ok && profile.needsHeader() {
		if err := r.establishSession(ctx); err != nil {
			return err
		}
	}

	playlistURL := r.session.PlaylistURL()
	if playlistURL == "" {
		return ErrNotLive
	}
	media, base, err := r.fetcher.Media(ctx, playlistURL)
	if err != nil {
		return err
	}
	if base != playlistURL {
		r.session.SetPlaylistURL(base)
	}

	dir := r.sessionDir(r.session.ID())
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	var wg sync.WaitGroup
	seq := media.SeqNo
	for _, ms := range media.Segments {
		if ms == nil {
			break
		}
		current := seq
		seq++

		full, err := profile.mediaURL(base, ms.URI)
		if err != nil {
			return err
		}
		entry := Segment{Sequence: current, URL: full, Duration: ms.Duration}
		// Append in playlist order so cache determinism never depends
		// on download-completion order.
		if !r.session.Append(entry) {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			dest := filepath.Join(dir, entry.FileName())
			size, err := r.client.Download(ctx, full, dest)
			if err != nil {
				r.log.Error("download segment failed",
					slog.Uint64("sequence", current),
					slog.String("error", err.Error()))
				if r.metrics != nil {
					r.metrics.IncDownloadErrors()
				}
				return
			}
			r.session.AddBytes(size)
			if r.metrics != nil {
				r.metrics.AddSegmentDownloaded(size)
			}
		}()
	}
	wg.Wait()

	if id := r.session.ID(); id != 0 {
		_, bytes, count := r.session.Counters()
		if err := r.store.UpdateArchive(ctx, id, count, bytes); err != nil {
			return fmt.Errorf("update archive: %w", err)
		}
	}
	if r.metrics != nil {
		r.metrics.IncIngestCycles()
	}
	return nil
}

// establishSession derives the session identity from the initialization
// segment, registers the archive record, prepares (or restores) the working
// directory, and downloads the header. Any failure aborts the current cycle;
// the outer loop retries on the next poll.
func (r *Recorder) establishSession(ctx context.Context) error {
	playlistURL := r.session.PlaylistURL()
	if playlistURL == "" {
		return ErrNotLive
	}

	ref, base, err := r.fetcher.HeaderRef(ctx, playlistURL)
	if err != nil {
		return err
	}
	if base != playlistURL {
		r.session.SetPlaylistURL(base)
	}

	id, err := parseSessionID(ref)
	if err != nil {
		return err
	}

	if _, err := r.store.CreateArchive(ctx, id, r.roomID, r.Room().Title); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	r.session.SetID(id)

	dir := r.sessionDir(id)
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		// Process restarted mid-session: rebuild the cache from disk.
		if restored := scanSegments(dir); len(restored) > 0 {
			r.session.Restore(restored)
			r.log.Info("restored session from cache",
				slog.Uint64("session_id", id),
				slog.Int("segments", len(restored)))
		}
	} else if err := ensureDir(dir); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	full, err := profileFor(r.session.Kind()).mediaURL(base, ref)
	if err != nil {
		return err
	}
	header := Segment{URL: full}
	size, err := r.client.Download(ctx, full, filepath.Join(dir, header.FileName()))
	if err != nil {
		return fmt.Errorf("download initialization segment: %w", err)
	}
	header.Size = size
	r.session.SetHeader(header)
	r.log.Info("session established", slog.Uint64("session_id", id))
	return nil
}

// runDanmu subscribes to the room's chat feed and republishes each message
// on the host event bus under a room-scoped channel. A dropped socket is
// logged and never affects recording.
func (r *Recorder) runDanmu(ctx context.Context) {
	if r.danmu == nil {
		return
	}
	ch, err := r.danmu.Subscribe(ctx, r.roomID)
	if err != nil {
		r.log.Warn("danmu subscribe failed", slog.String("error", err.Error()))
		return
	}
	channel := fmt.Sprintf("danmu:%d", r.roomID)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.log.Warn("danmu feed closed")
				return
			}
			r.events.Publish(channel, msg)
		}
	}
}

// Archives lists all persisted sessions for this room.
func (r *Recorder) Archives(ctx context.Context) ([]Archive, error) {
	return r.store.ListArchives(ctx, r.roomID)
}

// Archive returns one persisted session.
func (r *Recorder) Archive(ctx context.Context, sessionID uint64) (Archive, error) {
	return r.store.GetArchive(ctx, r.roomID, sessionID)
}

// Videos lists all clip records for this room.
func (r *Recorder) Videos(ctx context.Context) ([]Video, error) {
	return r.store.ListVideos(ctx, r.roomID)
}

// DeleteArchive removes the archive record and its on-disk directory. The
// two deletions are not transactional: if removing the directory fails the
// orphaned files are logged and left behind.
func (r *Recorder) DeleteArchive(ctx context.Context, sessionID uint64) error {
	if err := r.store.DeleteArchive(ctx, sessionID); err != nil {
		return err
	}
	dir := r.sessionDir(sessionID)
	if err := os.RemoveAll(dir); err != nil {
		r.log.Error("remove archive directory failed",
			slog.Uint64("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	return nil
}
