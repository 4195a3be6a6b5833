package recorder

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryArchiveStore_archives(t *testing.T) {
	s := NewMemoryArchiveStore()
	ctx := context.Background()

	a, err := s.CreateArchive(ctx, 1700000000, 42, "first stream")
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}
	if a.SessionID != 1700000000 || a.RoomID != 42 || a.Title != "first stream" {
		t.Errorf("created archive: %+v", a)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	// Re-registering the same session returns the original row untouched.
	dup, err := s.CreateArchive(ctx, 1700000000, 42, "different title")
	if err != nil {
		t.Fatalf("duplicate CreateArchive: %v", err)
	}
	if dup.Title != "first stream" || !dup.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("duplicate insert altered the record: %+v", dup)
	}

	if err := s.UpdateArchive(ctx, 1700000000, 120, 4096); err != nil {
		t.Fatalf("UpdateArchive: %v", err)
	}
	got, err := s.GetArchive(ctx, 42, 1700000000)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if got.Segments != 120 || got.Bytes != 4096 {
		t.Errorf("counters not persisted: %+v", got)
	}

	if err := s.UpdateArchive(ctx, 999, 1, 1); !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("UpdateArchive unknown session: %v", err)
	}
	if _, err := s.GetArchive(ctx, 7, 1700000000); !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("GetArchive wrong room: %v", err)
	}
}

func TestMemoryArchiveStore_list_ordering(t *testing.T) {
	s := NewMemoryArchiveStore()
	ctx := context.Background()

	for _, id := range []uint64{1700000300, 1700000100, 1700000200} {
		if _, err := s.CreateArchive(ctx, id, 42, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateArchive(ctx, 1700000400, 7, ""); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListArchives(ctx, 42)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d archives, want 3", len(list))
	}
	for i, want := range []uint64{1700000100, 1700000200, 1700000300} {
		if list[i].SessionID != want {
			t.Errorf("position %d: session %d, want %d", i, list[i].SessionID, want)
		}
	}
}

func TestMemoryArchiveStore_delete(t *testing.T) {
	s := NewMemoryArchiveStore()
	ctx := context.Background()

	if _, err := s.CreateArchive(ctx, 1700000000, 42, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteArchive(ctx, 1700000000); err != nil {
		t.Fatalf("DeleteArchive: %v", err)
	}
	if err := s.DeleteArchive(ctx, 1700000000); !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestMemoryArchiveStore_videos(t *testing.T) {
	s := NewMemoryArchiveStore()
	ctx := context.Background()

	v1, err := s.SaveVideo(ctx, Video{RoomID: 42, SessionID: 1700000000, File: "a.mp4", Length: 2})
	if err != nil {
		t.Fatalf("SaveVideo: %v", err)
	}
	v2, err := s.SaveVideo(ctx, Video{RoomID: 42, SessionID: 1700000000, File: "b.mp4", Length: 3})
	if err != nil {
		t.Fatalf("SaveVideo: %v", err)
	}
	if v1.ID == 0 || v2.ID <= v1.ID {
		t.Errorf("IDs not assigned in order: %d, %d", v1.ID, v2.ID)
	}

	list, err := s.ListVideos(ctx, 42)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(list) != 2 || list[0].File != "a.mp4" || list[1].File != "b.mp4" {
		t.Errorf("ListVideos = %+v", list)
	}

	if err := s.DeleteVideo(ctx, v1.ID); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if err := s.DeleteVideo(ctx, v1.ID); !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("second DeleteVideo: %v", err)
	}
	list, _ = s.ListVideos(ctx, 42)
	if len(list) != 1 || list[0].ID != v2.ID {
		t.Errorf("remaining videos: %+v", list)
	}
}

func TestMemoryArchiveStore_registrations(t *testing.T) {
	s := NewMemoryArchiveStore()
	ctx := context.Background()

	reg, err := s.RegisterRoom(ctx, 42)
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}
	again, err := s.RegisterRoom(ctx, 42)
	if err != nil {
		t.Fatalf("repeat RegisterRoom: %v", err)
	}
	if !again.CreatedAt.Equal(reg.CreatedAt) {
		t.Error("repeated registration replaced the record")
	}
	if _, err := s.RegisterRoom(ctx, 7); err != nil {
		t.Fatal(err)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].RoomID != 7 || rooms[1].RoomID != 42 {
		t.Errorf("ListRooms = %+v", rooms)
	}

	if err := s.UnregisterRoom(ctx, 42); err != nil {
		t.Fatalf("UnregisterRoom: %v", err)
	}
	if err := s.UnregisterRoom(ctx, 42); !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("second UnregisterRoom: %v", err)
	}
}
