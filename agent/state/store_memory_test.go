package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSaveLoadDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(WithLineIDs(seqIDs()))

	s := newTestSession()
	s.ApplyInvocation("call_1", addLines(line("A", 10, 2)))
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutations after Save must not leak into the stored copy.
	s.ApplyInvocation("call_2", addLines(line("B", 1, 1)))

	got, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Quote.Lines) != 1 || !got.Applied("call_1") || got.Applied("call_2") {
		t.Fatalf("unexpected loaded session: %+v", got)
	}

	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "s-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrSessionNotFound", err)
	}
	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilSession) {
		t.Fatalf("Save(nil) error = %v, want ErrNilSession", err)
	}
	if _, err := store.Load(ctx, " "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Load(blank) error = %v, want ErrInvalidSession", err)
	}
}

func TestMemoryStoreRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offset := map[int]time.Duration{0: 0, 1: 2 * time.Hour, 2: time.Hour}[i]
		if err := store.Save(ctx, NewSession(id, 0.21, base.Add(offset))); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0] != "new" || got[1] != "mid" {
		t.Fatalf("Recent() = %v", got)
	}

	if err := store.Delete(ctx, "new"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, _ = store.Recent(ctx, 0)
	if len(got) != 2 || got[0] != "mid" || got[1] != "old" {
		t.Fatalf("Recent() after delete = %v", got)
	}
}
