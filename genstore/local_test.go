package genstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	// bump b twice -> gen=2
	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}

	for k, want := range map[string]uint64{"a": 0, "b": 2} {
		got, err := s.Snapshot(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("%s: got=%d want=%d", k, got, want)
		}
	}
}

func TestLocalConcurrentBump(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Bump(ctx, "k")
			}
		}()
	}
	wg.Wait()

	if g, _ := s.Snapshot(ctx, "k"); g != 1600 {
		t.Fatalf("got %d want 1600", g)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, time.Second) // retention=1s
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	g, err := s.Snapshot(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
}

func TestLocalCleanupLoopStopsOnClose(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Millisecond)
	if _, err := s.Bump(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		if g, _ := s.Snapshot(context.Background(), "k"); g == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cleanup loop never pruned")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestLocalCloseTwice(t *testing.T) {
	s := NewLocal(time.Hour, time.Hour)
	_, _ = s.Bump(context.Background(), "a")
	_, _ = s.Bump(context.Background(), "b")
	if s.Len() != 2 {
		t.Fatalf("len=%d", s.Len())
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
