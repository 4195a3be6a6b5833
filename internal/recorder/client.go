package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// StreamClient is the remote platform boundary: room metadata lookup,
// play-URL resolution, and raw byte fetch. Every method distinguishes
// transient from permanent failures via UpstreamError.
type StreamClient interface {
	// RoomStatus fetches the current metadata snapshot for a room.
	RoomStatus(ctx context.Context, roomID uint64) (RoomStatus, error)

	// ResolvePlayURL resolves a fresh playlist URL and the stream kind for
	// a live room.
	ResolvePlayURL(ctx context.Context, roomID uint64) (string, StreamKind, error)

	// FetchText retrieves a small text document (playlist) from url.
	FetchText(ctx context.Context, url string) (string, error)

	// Download fetches url into dest and returns the byte size written.
	// dest is either fully written or absent; a failed download never
	// leaves a partial file in place.
	Download(ctx context.Context, url, dest string) (int64, error)
}

// HTTPStreamClient talks JSON over HTTP to the platform API and plain HTTP
// to the CDN. Status and play-URL lookups hit {APIBase}/rooms/{id}/status
// and {APIBase}/rooms/{id}/play-url respectively.
type HTTPStreamClient struct {
	APIBase string
	Cookies string
	HTTP    *http.Client
}

// NewHTTPStreamClient returns a client against apiBase. cookies, when
// non-empty, is sent as the Cookie header on every request; high-quality
// streams are only served to authenticated sessions.
func NewHTTPStreamClient(apiBase, cookies string) *HTTPStreamClient {
	return &HTTPStreamClient{
		APIBase: apiBase,
		Cookies: cookies,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPStreamClient) get(ctx context.Context, op, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{Op: op, Transient: false, Err: err}
	}
	if c.Cookies != "" {
		req.Header.Set("Cookie", c.Cookies)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: op, Transient: true, Err: err}
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, &UpstreamError{Op: op, Transient: true, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		resp.Body.Close()
		return nil, &UpstreamError{Op: op, Transient: false, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	return resp, nil
}

// RoomStatus implements StreamClient.RoomStatus.
func (c *HTTPStreamClient) RoomStatus(ctx context.Context, roomID uint64) (RoomStatus, error) {
	url := fmt.Sprintf("%s/rooms/%d/status", c.APIBase, roomID)
	resp, err := c.get(ctx, "room status", url)
	if err != nil {
		return RoomStatus{}, err
	}
	defer resp.Body.Close()

	var st RoomStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return RoomStatus{}, &UpstreamError{Op: "room status", Transient: false, Err: err}
	}
	st.RoomID = roomID
	return st, nil
}

// ResolvePlayURL implements StreamClient.ResolvePlayURL.
func (c *HTTPStreamClient) ResolvePlayURL(ctx context.Context, roomID uint64) (string, StreamKind, error) {
	url := fmt.Sprintf("%s/rooms/%d/play-url", c.APIBase, roomID)
	resp, err := c.get(ctx, "resolve play url", url)
	if err != nil {
		return "", KindFragmentedMP4, err
	}
	defer resp.Body.Close()

	var body struct {
		URL  string `json:"url"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", KindFragmentedMP4, &UpstreamError{Op: "resolve play url", Transient: false, Err: err}
	}
	kind := KindFragmentedMP4
	if body.Kind == "ts" {
		kind = KindTransportStream
	}
	return body.URL, kind, nil
}

// FetchText implements StreamClient.FetchText. A 404 body is returned as-is;
// the playlist fetcher recognizes stale CDN URLs by document content.
func (c *HTTPStreamClient) FetchText(ctx context.Context, url string) (string, error) {
	resp, err := c.get(ctx, "fetch text", url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Op: "fetch text", Transient: true, Err: err}
	}
	return string(b), nil
}

// Download implements StreamClient.Download. The body is written to a
// temporary sibling of dest and renamed into place only once fully read, so
// a failed download never leaves a half-written segment behind.
func (c *HTTPStreamClient) Download(ctx context.Context, url, dest string) (int64, error) {
	resp, err := c.get(ctx, "download", url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, &UpstreamError{Op: "download", Transient: false, Err: fmt.Errorf("HTTP 404 for %s", url)}
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, &UpstreamError{Op: "download", Transient: false, Err: err}
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, &UpstreamError{Op: "download", Transient: true, Err: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, &UpstreamError{Op: "download", Transient: false, Err: err}
	}
	return n, nil
}

var _ StreamClient = (*HTTPStreamClient)(nil)

// ensureDir creates dir (and parents) if it does not exist.
func ensureDir(dir string) error {
	return os.MkdirAll(filepath.Clean(dir), 0o755)
}
