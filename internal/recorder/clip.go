package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Clip extracts the [start, end] range of a session into a single output
// file under outDir and returns the file path. start and end are offsets in
// cache units (one unit per segment) relative to the start of the session;
// a reversed range is normalized before scanning. The live session is read
// from the in-memory cache, any other session from its on-disk directory.
func (r *Recorder) Clip(ctx context.Context, sessionID uint64, start, end float64, outDir string) (string, error) {
	if start > end {
		start, end = end, start
	}
	if outDir == "" {
		outDir = r.cfg.ClipDir
	}

	dir := r.sessionDir(sessionID)
	var entries []Segment
	var headerPath string

	if sessionID != 0 && sessionID == r.session.ID() {
		snapshot, header := r.session.Snapshot()
		entries = snapshot
		if header != nil && profileFor(r.session.Kind()).needsHeader() {
			headerPath = filepath.Join(dir, header.FileName())
		}
	} else {
		entries = scanSegments(dir)
		// Archive fMP4 sessions keep their initialization segment under
		// the fixed naming convention; transport streams have none.
		hp := filepath.Join(dir, fmt.Sprintf("h%d.m4s", sessionID))
		if _, err := os.Stat(hp); err == nil {
			headerPath = hp
		}
	}

	if len(entries) == 0 {
		return "", ErrEmptyCache
	}

	selected := selectRange(entries, start, end)
	paths := make([]string, 0, len(selected)+1)
	if headerPath != "" {
		paths = append(paths, headerPath)
	}
	for _, e := range selected {
		paths = append(paths, filepath.Join(dir, e.FileName()))
	}

	if err := ensureDir(outDir); err != nil {
		return "", fmt.Errorf("create clip dir: %w", err)
	}
	out := filepath.Join(outDir, fmt.Sprintf("[%d]%d_%s_%.1f.mp4",
		r.roomID, sessionID, time.Now().UTC().Format("0102150405"), end-start))

	r.log.Info("extracting clip",
		slog.Uint64("session_id", sessionID),
		slog.Float64("start", start),
		slog.Float64("end", end),
		slog.Int("segments", len(selected)))

	if err := r.transcoder.Concat(ctx, paths, out); err != nil {
		return "", fmt.Errorf("transcode clip: %w", err)
	}
	if r.metrics != nil {
		r.metrics.IncClipsCreated()
	}

	if _, err := r.store.SaveVideo(ctx, Video{
		RoomID:    r.roomID,
		SessionID: sessionID,
		File:      out,
		Length:    end - start,
	}); err != nil {
		r.log.Error("save video record failed", slog.String("error", err.Error()))
	}
	return out, nil
}

// ClipTail extracts the trailing d cache units of the live session.
func (r *Recorder) ClipTail(ctx context.Context, sessionID uint64, d float64, outDir string) (string, error) {
	duration, _, _ := r.session.Counters()
	return r.Clip(ctx, sessionID, duration-d, duration, outDir)
}

// selectRange picks the covering segment set for [start, end] by linear
// scan with an accumulating unit offset: entries are skipped until the
// offset reaches start and collected until it passes end, so both
// boundaries are inclusive.
func selectRange(entries []Segment, start, end float64) []Segment {
	var out []Segment
	offset := 0.0
	for _, e := range entries {
		if offset < start {
			offset++
			continue
		}
		out = append(out, e)
		if offset >= end {
			break
		}
		offset++
	}
	return out
}
