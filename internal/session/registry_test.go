package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(0)
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if got := r.Len(); got != 0 {
		t.Errorf("new registry Len() = %d, want 0", got)
	}
	if got := len(r.List()); got != 0 {
		t.Errorf("new registry List() has %d entries, want 0", got)
	}
}

func TestAddAndGet(t *testing.T) {
	r := NewRegistry(0)
	if err := r.Add(Info{ID: "a", RemoteAddr: "10.0.0.1:1000"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	info, ok := r.Get("a")
	if !ok {
		t.Fatal("Get returned ok=false after Add")
	}
	if info.RemoteAddr != "10.0.0.1:1000" {
		t.Errorf("RemoteAddr = %q, want %q", info.RemoteAddr, "10.0.0.1:1000")
	}
}

func TestGetMissing(t *testing.T) {
	r := NewRegistry(0)
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get for missing key returned ok=true")
	}
}

func TestAddDuplicate(t *testing.T) {
	r := NewRegistry(0)
	if err := r.Add(Info{ID: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := r.Add(Info{ID: "a"})
	if !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("second Add error = %v, want ErrDuplicateSession", err)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d after duplicate, want 1", got)
	}
}

func TestAddLimit(t *testing.T) {
	r := NewRegistry(2)
	for _, id := range []string{"a", "b"} {
		if err := r.Add(Info{ID: id}); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}

	if err := r.Add(Info{ID: "c"}); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("Add over limit error = %v, want ErrTooManySessions", err)
	}

	r.Remove("a")
	if err := r.Add(Info{ID: "c"}); err != nil {
		t.Fatalf("Add after Remove: %v", err)
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry(0)
	r.Add(Info{ID: "a"})

	if !r.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if _, ok := r.Get("a"); ok {
		t.Error("session still present after Remove")
	}
	if r.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
}

func TestListOrderedByConnectTime(t *testing.T) {
	r := NewRegistry(0)
	base := time.Now()
	r.Add(Info{ID: "late", ConnectedAt: base.Add(2 * time.Second)})
	r.Add(Info{ID: "early", ConnectedAt: base})
	r.Add(Info{ID: "mid", ConnectedAt: base.Add(time.Second)})

	list := r.List()
	want := []string{"early", "mid", "late"}
	if len(list) != len(want) {
		t.Fatalf("List() returned %d entries, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("List()[%d] = %q, want %q", i, list[i].ID, id)
		}
	}
}

func TestListReturnsCopies(t *testing.T) {
	r := NewRegistry(0)
	r.Add(Info{ID: "a", RemoteAddr: "original"})

	list := r.List()
	list[0].RemoteAddr = "mutated"

	got, _ := r.Get("a")
	if got.RemoteAddr != "original" {
		t.Error("List did not return copies; mutation leaked into registry")
	}
}

func TestConcurrentAddRemove(t *testing.T) {
	r := NewRegistry(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			if err := r.Add(Info{ID: id}); err != nil {
				t.Errorf("Add(%s): %v", id, err)
				return
			}
			_ = r.List()
			_ = r.Len()
			if !r.Remove(id) {
				t.Errorf("Remove(%s) = false", id)
			}
		}(i)
	}
	wg.Wait()

	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d after all removals, want 0", got)
	}
}

func TestConcurrentAddRespectsLimit(t *testing.T) {
	const limit = 5
	r := NewRegistry(limit)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Add(Info{ID: fmt.Sprintf("s%d", n)})
		}(i)
	}
	wg.Wait()

	if got := r.Len(); got != limit {
		t.Errorf("Len() = %d, want %d", got, limit)
	}
}
