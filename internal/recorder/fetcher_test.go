package recorder

import (
	"context"
	"errors"
	"testing"

	"hls-recorder/internal/platform/logger"
)

const testMasterDoc = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000
http://cdn.example/low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000
http://cdn.example/high/index.m3u8
`

func newTestFetcher(client StreamClient, revalidate func(context.Context) bool) *playlistFetcher {
	return &playlistFetcher{client: client, log: logger.Nop(), revalidate: revalidate}
}

func TestPlaylistFetcher_Media(t *testing.T) {
	client := &fakeClient{docs: map[string]string{testPlaylistURL: testMediaDoc}}
	f := newTestFetcher(client, nil)

	media, base, err := f.Media(context.Background(), testPlaylistURL)
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if base != testPlaylistURL {
		t.Errorf("base = %q", base)
	}
	if media.SeqNo != 100 {
		t.Errorf("SeqNo = %d, want 100", media.SeqNo)
	}
	var count int
	for _, s := range media.Segments {
		if s != nil {
			count++
		}
	}
	if count != 2 {
		t.Errorf("segment count = %d, want 2", count)
	}
}

func TestPlaylistFetcher_Media_follows_last_variant(t *testing.T) {
	client := &fakeClient{docs: map[string]string{
		"http://cdn.example/master.m3u8":    testMasterDoc,
		"http://cdn.example/high/index.m3u8": testMediaDoc,
	}}
	f := newTestFetcher(client, nil)

	_, base, err := f.Media(context.Background(), "http://cdn.example/master.m3u8")
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if base != "http://cdn.example/high/index.m3u8" {
		t.Errorf("expected last variant to become the base, got %q", base)
	}
}

func TestPlaylistFetcher_Media_nested_master_fails(t *testing.T) {
	client := &fakeClient{docs: map[string]string{
		"http://cdn.example/master.m3u8":    testMasterDoc,
		"http://cdn.example/high/index.m3u8": testMasterDoc,
	}}
	f := newTestFetcher(client, nil)

	_, _, err := f.Media(context.Background(), "http://cdn.example/master.m3u8")
	if !errors.Is(err, ErrPlaylistParse) {
		t.Errorf("expected ErrPlaylistParse, got %v", err)
	}
}

func TestPlaylistFetcher_stale_document(t *testing.T) {
	t.Run("offline_fails_with_not_live", func(t *testing.T) {
		client := &fakeClient{docs: map[string]string{testPlaylistURL: "404 Not Found"}}
		f := newTestFetcher(client, func(context.Context) bool { return false })

		_, _, err := f.Media(context.Background(), testPlaylistURL)
		if !errors.Is(err, ErrNotLive) {
			t.Errorf("expected ErrNotLive, got %v", err)
		}
	})

	t.Run("still_live_retries_once", func(t *testing.T) {
		client := &fakeClient{docs: map[string]string{testPlaylistURL: "404 Not Found"}}
		f := newTestFetcher(client, func(context.Context) bool {
			// Revalidation refreshed the CDN document.
			client.mu.Lock()
			client.docs[testPlaylistURL] = testMediaDoc
			client.mu.Unlock()
			return true
		})

		media, _, err := f.Media(context.Background(), testPlaylistURL)
		if err != nil {
			t.Fatalf("Media after revalidation: %v", err)
		}
		if media.SeqNo != 100 {
			t.Errorf("SeqNo = %d", media.SeqNo)
		}
	})
}

func TestPlaylistFetcher_HeaderRef(t *testing.T) {
	client := &fakeClient{docs: map[string]string{testPlaylistURL: testMediaDoc}}
	f := newTestFetcher(client, nil)

	ref, base, err := f.HeaderRef(context.Background(), testPlaylistURL)
	if err != nil {
		t.Fatalf("HeaderRef: %v", err)
	}
	if ref != "h1700000000.m4s" {
		t.Errorf("ref = %q", ref)
	}
	if base != testPlaylistURL {
		t.Errorf("base = %q", base)
	}
}

func TestPlaylistFetcher_HeaderRef_missing_is_hard_failure(t *testing.T) {
	doc := `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-TARGETDURATION:1
#EXT-X-MEDIA-SEQUENCE:100
#EXTINF:1.0,
100.m4s
`
	client := &fakeClient{docs: map[string]string{testPlaylistURL: doc}}
	f := newTestFetcher(client, nil)

	_, _, err := f.HeaderRef(context.Background(), testPlaylistURL)
	if !errors.Is(err, ErrMissingHeader) {
		t.Errorf("expected ErrMissingHeader, got %v", err)
	}
}

func TestPlaylistFetcher_HeaderRef_follows_master(t *testing.T) {
	client := &fakeClient{docs: map[string]string{
		"http://cdn.example/master.m3u8":    testMasterDoc,
		"http://cdn.example/high/index.m3u8": testMediaDoc,
	}}
	f := newTestFetcher(client, nil)

	ref, base, err := f.HeaderRef(context.Background(), "http://cdn.example/master.m3u8")
	if err != nil {
		t.Fatalf("HeaderRef: %v", err)
	}
	if ref != "h1700000000.m4s" || base != "http://cdn.example/high/index.m3u8" {
		t.Errorf("ref=%q base=%q", ref, base)
	}
}

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		ref     string
		want    uint64
		wantErr bool
	}{
		{"h1700000000.m4s", 1700000000, false},
		{"h1.m4s", 1, false},
		{"habc.m4s", 0, true},
		{"100.m4s", 0, true},
		{"h0.m4s", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := parseSessionID(tc.ref)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("parseSessionID(%q): expected ErrInvalidSessionID, got %v", tc.ref, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseSessionID(%q) = %d, %v; want %d", tc.ref, got, err, tc.want)
		}
	}
}
