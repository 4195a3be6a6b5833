package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLive is returned when an operation requires an active stream
	// but the room is offline. While polling this is the normal idle state,
	// not an error.
	ErrNotLive = errors.New("room is not live")

	// ErrEmptyCache is returned when a playlist or clip request targets a
	// session with zero cached or scanned segments.
	ErrEmptyCache = errors.New("segment cache is empty")

	// ErrPlaylistParse is returned when a fetched playlist document cannot
	// be decoded.
	ErrPlaylistParse = errors.New("parse playlist failed")

	// ErrMissingHeader is returned when an fMP4 playlist carries no
	// initialization-segment reference. Distinct from ErrNotLive: the room
	// is live but the document is unusable.
	ErrMissingHeader = errors.New("initialization segment reference missing")

	// ErrInvalidSessionID is returned when the timestamp embedded in the
	// initialization-segment filename does not parse. Session identity
	// cannot be established, so the current cycle is aborted rather than
	// defaulted.
	ErrInvalidSessionID = errors.New("invalid session timestamp")

	// ErrArchiveNotFound is returned by store operations that matched no
	// record.
	ErrArchiveNotFound = errors.New("archive not found")
)

// InvalidPlaylistURLError reports a playlist base URL missing the marker
// needed to resolve relative media references.
type InvalidPlaylistURLError struct {
	URL string
}

func (e *InvalidPlaylistURLError) Error() string {
	return fmt.Sprintf("invalid playlist url: %s", e.URL)
}

// UpstreamError wraps a failure from the metadata/download collaborator.
// Transient failures (network blips, 5xx) may clear on retry; permanent
// ones (4xx) will not.
type UpstreamError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a transient upstream failure.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}
