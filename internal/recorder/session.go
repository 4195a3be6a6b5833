package recorder

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// session holds all mutable per-room recording state: liveness, the current
// playlist URL and stream kind, the in-memory segment cache for the active
// session, and its aggregate counters. Everything sits behind one
// reader/writer mutex so the reset on a live→offline transition is atomic
// and playlist/clip readers never observe a half-cleared session.
type session struct {
	mu           sync.RWMutex
	live         bool
	playlistURL  string
	kind         StreamKind
	startedAt    uint64
	lastSequence uint64
	header       *Segment
	entries      []Segment
	duration     float64
	bytes        int64
}

// Reset clears all session state: cache, counters, initialization segment
// and the session identity. The playlist URL and stream kind survive; they
// are overwritten on the next play-URL resolution anyway.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startedAt = 0
	s.lastSequence = 0
	s.header = nil
	s.entries = nil
	s.duration = 0
	s.bytes = 0
}

// SetLive records the room's liveness flag.
func (s *session) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Live reports whether the room is currently live.
func (s *session) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// SetStream records a freshly resolved playlist URL and stream kind.
func (s *session) SetStream(url string, kind StreamKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlistURL = url
	s.kind = kind
}

// PlaylistURL returns the current playlist URL.
func (s *session) PlaylistURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlistURL
}

// Kind returns the current stream kind.
func (s *session) Kind() StreamKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// SetPlaylistURL overwrites the playlist URL, e.g. after following a master
// playlist's variant reference.
func (s *session) SetPlaylistURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlistURL = url
}

// SetID fixes the session identity. Identity is derived once, from the
// first resolved initialization segment, and never re-derived mid-session.
func (s *session) SetID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = id
}

// ID returns the session identity, 0 when no session is established.
func (s *session) ID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// SetHeader records the downloaded initialization segment.
func (s *session) SetHeader(h Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = &h
	s.bytes += h.Size
}

// Header returns a copy of the initialization segment, if one exists.
func (s *session) Header() (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.header == nil {
		return Segment{}, false
	}
	return *s.header, true
}

// Append adds a segment to the cache if its sequence advances past the last
// seen one. Re-delivered sequences (playlists re-list a trailing window) are
// ignored so a re-fetch never duplicates an entry. Cumulative duration is
// counted as one unit per segment.
func (s *session) Append(seg Segment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seg.Sequence <= s.lastSequence && (len(s.entries) > 0 || s.lastSequence > 0) {
		return false
	}
	s.entries = append(s.entries, seg)
	s.lastSequence = seg.Sequence
	s.duration += 1.0
	return true
}

// LastSequence returns the highest sequence appended or restored so far.
func (s *session) LastSequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSequence
}

// AddBytes adds n to the session's cumulative byte counter.
func (s *session) AddBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytes += n
}

// Counters returns the cumulative duration units, byte size and entry count.
func (s *session) Counters() (duration float64, bytes int64, count int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration, s.bytes, int64(len(s.entries))
}

// Snapshot returns a copy of the cached entries plus the header, safe to
// iterate without holding the session lock.
func (s *session) Snapshot() (entries []Segment, header *Segment) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries = make([]Segment, len(s.entries))
	copy(entries, s.entries)
	if s.header != nil {
		h := *s.header
		header = &h
	}
	return entries, header
}

// Restore rebuilds the cache from a directory scan after a mid-session
// restart, recomputing counters from the scanned set. The initialization
// segment is re-established by the ingest cycle, not restored here.
func (s *session) Restore(entries []Segment) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entries...)
	s.duration = float64(len(s.entries))
	s.bytes = 0
	for _, e := range s.entries {
		s.bytes += e.Size
	}
	s.lastSequence = s.entries[len(s.entries)-1].Sequence
}

// scanSegments lists the media segments cached under dir: every regular
// file except the initialization segment (h-prefixed by convention), its
// sequence parsed from the filename stem, sorted ascending. Files with
// unparsable names are skipped. A missing directory yields an empty slice.
func scanSegments(dir string) []Segment {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []Segment
	for _, de := range dirents {
		if !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, "h") {
			continue
		}
		stem, _, _ := strings.Cut(name, ".")
		seq, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}
		out = append(out, Segment{
			Sequence: seq,
			URL:      name,
			Duration: 1.0,
			Size:     size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
