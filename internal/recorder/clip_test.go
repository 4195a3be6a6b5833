package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestSelectRange(t *testing.T) {
	entries := make([]Segment, 0, 5)
	for seq := uint64(0); seq <= 4; seq++ {
		entries = append(entries, Segment{Sequence: seq})
	}

	tests := []struct {
		name       string
		start, end float64
		want       []uint64
	}{
		{"interior_boundary_inclusive", 1.0, 3.0, []uint64{1, 2, 3}},
		{"full_range", 0, 4, []uint64{0, 1, 2, 3, 4}},
		{"single_unit", 2, 2, []uint64{2}},
		{"beyond_tail", 3, 10, []uint64{3, 4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := selectRange(entries, tc.start, tc.end)
			if len(got) != len(tc.want) {
				t.Fatalf("selected %d segments, want %d", len(got), len(tc.want))
			}
			for i, want := range tc.want {
				if got[i].Sequence != want {
					t.Errorf("position %d: sequence %d, want %d", i, got[i].Sequence, want)
				}
			}
		})
	}
}

func archiveDir(t *testing.T, rec *Recorder, sessionID uint64, names ...string) string {
	t.Helper()
	dir := rec.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestClip_archive_selects_covering_set(t *testing.T) {
	rec, store, tr := newTestRecorder(t, &fakeClient{})
	dir := archiveDir(t, rec, 1600000000,
		"h1600000000.m4s", "0.m4s", "1.m4s", "2.m4s", "3.m4s", "4.m4s")

	out, err := rec.Clip(context.Background(), 1600000000, 1.0, 3.0, "")
	if err != nil {
		t.Fatalf("Clip: %v", err)
	}
	if !strings.HasSuffix(out, ".mp4") {
		t.Errorf("output name: %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	inputs := tr.lastInputs()
	want := []string{
		filepath.Join(dir, "h1600000000.m4s"),
		filepath.Join(dir, "1.m4s"),
		filepath.Join(dir, "2.m4s"),
		filepath.Join(dir, "3.m4s"),
	}
	if len(inputs) != len(want) {
		t.Fatalf("inputs = %v, want %v", inputs, want)
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Errorf("input %d = %q, want %q", i, inputs[i], want[i])
		}
	}

	videos, err := store.ListVideos(context.Background(), 42)
	if err != nil || len(videos) != 1 {
		t.Fatalf("expected 1 video record: %v %v", videos, err)
	}
	if videos[0].File != out || videos[0].Length != 2.0 {
		t.Errorf("video record: %+v", videos[0])
	}
}

func TestClip_reversed_range_is_normalized(t *testing.T) {
	rec, _, tr := newTestRecorder(t, &fakeClient{})
	archiveDir(t, rec, 1600000000, "0.m4s", "1.m4s", "2.m4s", "3.m4s", "4.m4s")

	ctx := context.Background()
	if _, err := rec.Clip(ctx, 1600000000, 1.0, 3.0, ""); err != nil {
		t.Fatalf("forward Clip: %v", err)
	}
	forward := tr.lastInputs()
	if _, err := rec.Clip(ctx, 1600000000, 3.0, 1.0, ""); err != nil {
		t.Fatalf("reversed Clip: %v", err)
	}
	reversed := tr.lastInputs()

	if len(forward) != len(reversed) {
		t.Fatalf("selections differ: %v vs %v", forward, reversed)
	}
	for i := range forward {
		if forward[i] != reversed[i] {
			t.Errorf("selection %d differs: %q vs %q", i, forward[i], reversed[i])
		}
	}
}

func TestClip_empty_source_never_invokes_transcoder(t *testing.T) {
	rec, _, tr := newTestRecorder(t, &fakeClient{})

	t.Run("missing_directory", func(t *testing.T) {
		_, err := rec.Clip(context.Background(), 1500000000, 0, 10, "")
		if !errors.Is(err, ErrEmptyCache) {
			t.Errorf("expected ErrEmptyCache, got %v", err)
		}
	})

	t.Run("empty_directory", func(t *testing.T) {
		archiveDir(t, rec, 1500000001)
		_, err := rec.Clip(context.Background(), 1500000001, 0, 10, "")
		if !errors.Is(err, ErrEmptyCache) {
			t.Errorf("expected ErrEmptyCache, got %v", err)
		}
	})

	if tr.callCount() != 0 {
		t.Errorf("transcoder invoked %d times for empty sources", tr.callCount())
	}
}

func TestClip_live_prefixes_initialization_segment(t *testing.T) {
	rec, _, tr := newTestRecorder(t, &fakeClient{})
	rec.session.SetLive(true)
	rec.session.SetID(1700000000)
	rec.session.SetStream(testPlaylistURL, KindFragmentedMP4)
	rec.session.SetHeader(Segment{URL: "http://cdn.example/live/h1700000000.m4s"})
	for seq := uint64(100); seq <= 103; seq++ {
		rec.session.Append(Segment{Sequence: seq, URL: "http://cdn.example/live/" + utoa(seq) + ".m4s"})
	}

	if _, err := rec.Clip(context.Background(), 1700000000, 0, 1, ""); err != nil {
		t.Fatalf("Clip: %v", err)
	}
	inputs := tr.lastInputs()
	if len(inputs) != 3 {
		t.Fatalf("inputs = %v", inputs)
	}
	dir := rec.sessionDir(1700000000)
	if inputs[0] != filepath.Join(dir, "h1700000000.m4s") {
		t.Errorf("header not first: %v", inputs)
	}
	if inputs[1] != filepath.Join(dir, "100.m4s") || inputs[2] != filepath.Join(dir, "101.m4s") {
		t.Errorf("selected segments: %v", inputs)
	}
}

func TestClipTail_takes_trailing_units(t *testing.T) {
	rec, _, tr := newTestRecorder(t, &fakeClient{})
	rec.session.SetLive(true)
	rec.session.SetID(1700000000)
	rec.session.SetStream(testPlaylistURL, KindTransportStream)
	for seq := uint64(0); seq <= 4; seq++ {
		rec.session.Append(Segment{Sequence: seq, URL: utoa(seq) + ".ts"})
	}

	if _, err := rec.ClipTail(context.Background(), 1700000000, 2.0, ""); err != nil {
		t.Fatalf("ClipTail: %v", err)
	}
	inputs := tr.lastInputs()
	if len(inputs) != 2 {
		t.Fatalf("inputs = %v", inputs)
	}
	if !strings.HasSuffix(inputs[0], "3.ts") || !strings.HasSuffix(inputs[1], "4.ts") {
		t.Errorf("expected trailing segments 3 and 4, got %v", inputs)
	}
}

func utoa(n uint64) string {
	return strconv.FormatUint(n, 10)
}
