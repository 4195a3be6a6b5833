package recorder

import (
	"fmt"
	"strings"
)

// Playlist synthesizes the playlist document for a session of this room.
// The live session (matching the active identity) is served from the
// in-memory cache; any other session is reconstructed from its on-disk
// directory. Paths in the output are relative, scoped by room and session;
// resolving them to bytes is the serving layer's concern.
func (r *Recorder) Playlist(sessionID uint64) string {
	if sessionID != 0 && sessionID == r.session.ID() {
		return r.livePlaylist()
	}
	return r.archivePlaylist(sessionID)
}

// livePlaylist is built from the cache and flips from EVENT to VOD with an
// end marker the instant the session goes offline, so a player can treat a
// just-ended live session as a finished file without restarting playback.
func (r *Recorder) livePlaylist() string {
	entries, header := r.session.Snapshot()
	sessionID := r.session.ID()
	ended := !r.session.Live()

	var mapURI string
	if header != nil {
		mapURI = fmt.Sprintf("/%d/%d/%s", r.roomID, sessionID, header.FileName())
	}
	return buildPlaylist(r.roomID, sessionID, mapURI, entries, ended)
}

// archivePlaylist rebuilds a finished session from its directory listing.
// The map URI comes from the fixed h<session>.m4s naming convention rather
// than any in-memory state.
func (r *Recorder) archivePlaylist(sessionID uint64) string {
	mapURI := fmt.Sprintf("/%d/%d/h%d.m4s", r.roomID, sessionID, sessionID)
	entries := scanSegments(r.sessionDir(sessionID))
	return buildPlaylist(r.roomID, sessionID, mapURI, entries, true)
}

// buildPlaylist renders the fixed version-6, one-second-target playlist
// shared by both modes. A discontinuity marker precedes any entry whose
// sequence gap from its predecessor exceeds 1; gaps are flagged, never
// backfilled.
func buildPlaylist(roomID, sessionID uint64, mapURI string, entries []Segment, ended bool) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:6\n")
	b.WriteString("#EXT-X-TARGETDURATION:1\n")
	if ended {
		b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	} else {
		b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")
	}
	if mapURI != "" {
		fmt.Fprintf(&b, "#EXT-X-MAP:URI=%q\n", mapURI)
	}

	if len(entries) > 0 {
		last := entries[0].Sequence
		for _, e := range entries {
			if e.Sequence-last > 1 {
				b.WriteString("#EXT-X-DISCONTINUITY\n")
			}
			last = e.Sequence
			b.WriteString("#EXTINF:1,\n")
			fmt.Fprintf(&b, "/%d/%d/%s\n", roomID, sessionID, e.FileName())
		}
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}
