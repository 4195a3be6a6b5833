package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

// headerRefPattern matches the initialization-segment reference embedded in
// an fMP4 media playlist. The digits are the session timestamp.
var headerRefPattern = regexp.MustCompile(`h(\d+)\.m4s`)

// playlistFetcher retrieves and decodes the remote playlist document.
// revalidate is consulted once when the upstream CDN URL looks stale
// (document reports "Not Found"): if the room is still live the fetch is
// retried, otherwise the fetch fails with ErrNotLive instead of retrying
// forever against a dead session.
type playlistFetcher struct {
	client     StreamClient
	log        *slog.Logger
	revalidate func(ctx context.Context) bool
}

// document fetches the playlist body, handling the stale-CDN case.
func (f *playlistFetcher) document(ctx context.Context, url string) (string, error) {
	body, err := f.client.FetchText(ctx, url)
	if err != nil {
		return "", err
	}
	if !strings.Contains(body, "Not Found") {
		return body, nil
	}
	f.log.Warn("playlist document not found, revalidating liveness", slog.String("url", url))
	if f.revalidate != nil && f.revalidate(ctx) {
		return f.client.FetchText(ctx, url)
	}
	return "", ErrNotLive
}

// Media fetches and decodes a media playlist from url. A master
// (variant-selection) document is followed to its last listed variant and
// decoded once more; a second master in a row is a parse failure. The
// returned string is the URL the media playlist was actually read from,
// which becomes the new base for resolving segment references.
func (f *playlistFetcher) Media(ctx context.Context, url string) (*m3u8.MediaPlaylist, string, error) {
	return f.media(ctx, url, true)
}

func (f *playlistFetcher) media(ctx context.Context, url string, followMaster bool) (*m3u8.MediaPlaylist, string, error) {
	body, err := f.document(ctx, url)
	if err != nil {
		return nil, "", err
	}

	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(body), true)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPlaylistParse, err)
	}

	switch listType {
	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, "", ErrPlaylistParse
		}
		return media, url, nil
	case m3u8.MASTER:
		if !followMaster {
			return nil, "", fmt.Errorf("%w: nested master playlist", ErrPlaylistParse)
		}
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok || len(master.Variants) == 0 {
			return nil, "", ErrPlaylistParse
		}
		next := master.Variants[len(master.Variants)-1].URI
		f.log.Debug("following master playlist variant", slog.String("variant", next))
		return f.media(ctx, next, false)
	default:
		return nil, "", ErrPlaylistParse
	}
}

// HeaderRef extracts the initialization-segment reference from the playlist
// at url, following a master document the same way Media does. The second
// return value is the URL the reference was found at. A live fMP4 document
// without the reference fails with ErrMissingHeader, which is distinct from
// the room simply not being live yet.
func (f *playlistFetcher) HeaderRef(ctx context.Context, url string) (string, string, error) {
	return f.headerRef(ctx, url, true)
}

func (f *playlistFetcher) headerRef(ctx context.Context, url string, followMaster bool) (string, string, error) {
	body, err := f.document(ctx, url)
	if err != nil {
		return "", "", err
	}

	if strings.Contains(body, "BANDWIDTH") {
		if !followMaster {
			return "", "", fmt.Errorf("%w: nested master playlist", ErrPlaylistParse)
		}
		lines := strings.Fields(body)
		next := lines[len(lines)-1]
		return f.headerRef(ctx, next, false)
	}

	ref := headerRefPattern.FindString(body)
	if ref == "" {
		f.log.Warn("initialization segment reference not found", slog.String("url", url))
		return "", "", ErrMissingHeader
	}
	return ref, url, nil
}

// parseSessionID extracts the session timestamp from an
// initialization-segment reference (h<digits>.m4s). The timestamp doubles
// as the session/archive identifier, so a parse failure here is fatal for
// the current ingest attempt and is never silently defaulted.
func parseSessionID(ref string) (uint64, error) {
	m := headerRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSessionID, ref)
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSessionID, ref)
	}
	return id, nil
}
