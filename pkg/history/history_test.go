package history_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/haivivi/gizplay/pkg/history"
)

var quietLogger = slog.New(slog.DiscardHandler)

// stores returns one fresh Store per implementation.
func stores(t *testing.T) map[string]history.Store {
	t.Helper()
	b, err := history.NewBadger(history.BadgerOptions{InMemory: true, Logger: quietLogger})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	m := history.NewMemory()
	t.Cleanup(func() {
		b.Close()
		m.Close()
	})
	return map[string]history.Store{"memory": m, "badger": b}
}

func TestGetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			const uri = "https://example.com/a.mp3?x=1"
			if _, err := s.Get(ctx, uri); !errors.Is(err, history.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			in := history.Entry{URI: uri, Position: 90 * time.Second, Duration: 3 * time.Minute, UpdatedAt: at}
			if err := s.Put(ctx, in); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.Get(ctx, uri)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.URI != in.URI || got.Position != in.Position || got.Duration != in.Duration || !got.UpdatedAt.Equal(at) {
				t.Fatalf("Get = %+v, want %+v", got, in)
			}

			// Overwrite.
			in.Position = 100 * time.Second
			if err := s.Put(ctx, in); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			if got, _ := s.Get(ctx, uri); got.Position != 100*time.Second {
				t.Fatalf("Position after overwrite = %v", got.Position)
			}

			if err := s.Delete(ctx, uri); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, uri); !errors.Is(err, history.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := s.Delete(ctx, "no-such-uri"); err != nil {
				t.Fatalf("Delete non-existent: %v", err)
			}
		})
	}
}

func TestPutStampsTime(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			before := time.Now()
			if err := s.Put(ctx, history.Entry{URI: "test://tone", Position: time.Second}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.Get(ctx, "test://tone")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.UpdatedAt.Before(before.Add(-time.Second)) {
				t.Fatalf("UpdatedAt = %v, want about %v", got.UpdatedAt, before)
			}
			if err := s.Put(ctx, history.Entry{Position: time.Second}); !errors.Is(err, history.ErrNoURI) {
				t.Fatalf("Put without URI: %v", err)
			}
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, uri := range []string{"s3://b/k", "/tmp/a.wav", "test://tone"} {
				if err := s.Put(ctx, history.Entry{URI: uri, Position: time.Second}); err != nil {
					t.Fatalf("Put(%s): %v", uri, err)
				}
			}
			var got []string
			for e, err := range s.List(ctx) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				got = append(got, e.URI)
			}
			want := []string{"/tmp/a.wav", "s3://b/k", "test://tone"}
			if len(got) != len(want) {
				t.Fatalf("List = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("List = %v, want %v", got, want)
				}
			}

			// Stopping early must not leak or panic.
			for range s.List(ctx) {
				break
			}
		})
	}
}

func TestEntry_Resumable(t *testing.T) {
	tests := []struct {
		name      string
		e         history.Entry
		finished  bool
		resumable bool
	}{
		{"start", history.Entry{Position: 0, Duration: time.Minute}, false, false},
		{"middle", history.Entry{Position: 30 * time.Second, Duration: time.Minute}, false, true},
		{"end", history.Entry{Position: time.Minute, Duration: time.Minute}, true, false},
		{"within margin", history.Entry{Position: time.Minute - 500*time.Millisecond, Duration: time.Minute}, true, false},
		{"unknown duration", history.Entry{Position: time.Hour}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Finished(); got != tt.finished {
				t.Errorf("Finished() = %v, want %v", got, tt.finished)
			}
			if got := tt.e.Resumable(); got != tt.resumable {
				t.Errorf("Resumable() = %v, want %v", got, tt.resumable)
			}
		})
	}
}

func TestBadgerPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := history.NewBadger(history.BadgerOptions{Dir: dir, Logger: quietLogger})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	if err := s.Put(ctx, history.Entry{URI: "test://tone", Position: 5 * time.Second}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = history.NewBadger(history.BadgerOptions{Dir: dir, Logger: quietLogger})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "test://tone")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Position != 5*time.Second {
		t.Fatalf("Position = %v, want 5s", got.Position)
	}
}

func TestBadgerDirRequired(t *testing.T) {
	if _, err := history.NewBadger(history.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}
