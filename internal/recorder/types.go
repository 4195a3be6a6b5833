package recorder

import (
	"strings"
	"time"
)

// Segment is one playlist entry resolved to a fetchable location.
// Sequence numbers are monotonic within a session and drive both ordering
// and gap/dedup detection. Range-selection math weighs every segment as
// exactly one time unit regardless of Duration; Duration only records what
// the playlist declared.
type Segment struct {
	Sequence uint64  `json:"sequence"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
}

// FileName returns the last path element of the segment URL, which is also
// the name the segment is cached under on disk.
func (s Segment) FileName() string {
	if i := strings.LastIndexByte(s.URL, '/'); i >= 0 {
		return s.URL[i+1:]
	}
	return s.URL
}

// StreamKind identifies the container format of a live stream.
type StreamKind int

const (
	// KindTransportStream is a classic MPEG-TS segment stream.
	KindTransportStream StreamKind = iota
	// KindFragmentedMP4 is an fMP4/CMAF stream that requires an
	// initialization segment before any media segment is decodable.
	KindFragmentedMP4
)

// String implements fmt.Stringer.
func (k StreamKind) String() string {
	switch k {
	case KindTransportStream:
		return "ts"
	case KindFragmentedMP4:
		return "fmp4"
	default:
		return "unknown"
	}
}

// streamProfile isolates the kind-specific behavior of a stream: how a
// playlist-relative media reference becomes a fetchable URL and whether an
// initialization segment must be established before recording.
type streamProfile interface {
	kind() StreamKind
	needsHeader() bool
	mediaURL(playlistURL, ref string) (string, error)
}

// playlistMarker is the fixed file name every playlist URL ends in; media
// references are resolved relative to it.
const playlistMarker = "index.m3u8"

// resolveMediaURL rewrites the playlist URL's trailing index.m3u8 (plus any
// query string) into the given media reference.
func resolveMediaURL(playlistURL, ref string) (string, error) {
	pos := strings.LastIndex(playlistURL, playlistMarker)
	if pos < 0 {
		return "", &InvalidPlaylistURLError{URL: playlistURL}
	}
	return playlistURL[:pos] + ref, nil
}

type tsProfile struct{}

func (tsProfile) kind() StreamKind  { return KindTransportStream }
func (tsProfile) needsHeader() bool { return false }
func (tsProfile) mediaURL(playlistURL, ref string) (string, error) {
	return resolveMediaURL(playlistURL, ref)
}

type fmp4Profile struct{}

func (fmp4Profile) kind() StreamKind  { return KindFragmentedMP4 }
func (fmp4Profile) needsHeader() bool { return true }
func (fmp4Profile) mediaURL(playlistURL, ref string) (string, error) {
	return resolveMediaURL(playlistURL, ref)
}

// profileFor returns the profile implementing kind-specific behavior.
func profileFor(kind StreamKind) streamProfile {
	if kind == KindFragmentedMP4 {
		return fmp4Profile{}
	}
	return tsProfile{}
}

// RoomStatus is the metadata snapshot returned by a room status poll.
type RoomStatus struct {
	RoomID  uint64 `json:"room_id"`
	IsLive  bool   `json:"is_live"`
	Title   string `json:"title"`
	OwnerID uint64 `json:"owner_id"`
	Owner   string `json:"owner"`
}

// DanmuMessage is one chat message received over the room's push feed.
type DanmuMessage struct {
	RoomID uint64    `json:"room_id"`
	UserID uint64    `json:"user_id"`
	User   string    `json:"user"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}
