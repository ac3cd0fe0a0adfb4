package ticket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "k", Session{Opponent: "t2"}, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	var sess Session
	if err := s.Get(ctx, "k", &sess); err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Opponent != "t2" {
		t.Fatalf("unexpected value: %+v", sess)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Get(ctx, "k", &sess); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetHonorsTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.SetNow(func() time.Time { return now })

	if err := s.Put(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	var out string
	if err := s.Get(ctx, "k", &out); err != ErrNotFound {
		t.Fatalf("expected expired key to be gone, got %v", err)
	}
}

func TestPopIsFIFO(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, tok := range []string{"t1", "t2", "t3"} {
		if err := s.Push(ctx, "b", Entry{Token: tok}, 0); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	for _, want := range []string{"t1", "t2", "t3"} {
		e, err := s.Pop(ctx, "b", "")
		if err != nil || e == nil {
			t.Fatalf("pop: %v %v", e, err)
		}
		if e.Token != want {
			t.Fatalf("expected %s, got %s", want, e.Token)
		}
	}
	if e, _ := s.Pop(ctx, "b", ""); e != nil {
		t.Fatalf("expected empty bucket, got %+v", e)
	}
}

func TestPopDiscardsExpiredEntries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.SetNow(func() time.Time { return now })

	_ = s.Push(ctx, "b", Entry{Token: "stale"}, time.Minute)
	now = now.Add(2 * time.Minute)
	_ = s.Push(ctx, "b", Entry{Token: "fresh"}, time.Minute)

	e, err := s.Pop(ctx, "b", "")
	if err != nil || e == nil {
		t.Fatalf("pop: %v %v", e, err)
	}
	if e.Token != "fresh" {
		t.Fatalf("expected the stale entry to be skipped, got %s", e.Token)
	}
}

func TestPopSkipsOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Push(ctx, "b", Entry{Token: "mine", Owner: "u1"}, 0)
	_ = s.Push(ctx, "b", Entry{Token: "theirs", Owner: "u2"}, 0)

	e, err := s.Pop(ctx, "b", "u1")
	if err != nil || e == nil {
		t.Fatalf("pop: %v %v", e, err)
	}
	if e.Token != "theirs" {
		t.Fatalf("expected own entry to be dropped, got %s", e.Token)
	}
}

func TestRemoveOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Push(ctx, "b", Entry{Token: "t1", Owner: "u1"}, 0)
	_ = s.Push(ctx, "b", Entry{Token: "t2", Owner: "u2"}, 0)

	if err := s.RemoveOwner(ctx, "b", "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing again is a no-op.
	if err := s.RemoveOwner(ctx, "b", "u1"); err != nil {
		t.Fatalf("remove twice: %v", err)
	}

	e, _ := s.Pop(ctx, "b", "")
	if e == nil || e.Token != "t2" {
		t.Fatalf("expected only t2 to remain, got %+v", e)
	}
	if e, _ := s.Pop(ctx, "b", ""); e != nil {
		t.Fatalf("expected empty bucket, got %+v", e)
	}
}

func TestConcurrentPopNeverDoublesAnEntry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 64
	for i := 0; i < n; i++ {
		_ = s.Push(ctx, "b", Entry{Token: fmt.Sprintf("t%d", i)}, 0)
	}

	var mu sync.Mutex
	popped := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := s.Pop(ctx, "b", "")
				if err != nil {
					t.Errorf("pop: %v", err)
					return
				}
				if e == nil {
					return
				}
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if popped != n {
		t.Fatalf("expected %d pops, got %d", n, popped)
	}
}
