package matchmaking

import (
	"testing"
	"time"
)

func TestRegistryRegisterSkipsDuplicateIDs(t *testing.T) {
	ids := []string{"a", "a", "b"}
	r := NewRegistry(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	})

	first := r.Register(&recorder{}, time.Now())
	second := r.Register(&recorder{}, time.Now())

	if first.ID != "a" || second.ID != "b" {
		t.Fatalf("got ids %q, %q; want a, b", first.ID, second.ID)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if first.Available {
		t.Fatal("new client should not be available")
	}
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	c := r.Register(&recorder{}, time.Now())

	if got := r.Unregister(c.ID); got != c {
		t.Fatalf("Unregister returned %v, want %v", got, c)
	}
	if got := r.Unregister(c.ID); got != nil {
		t.Fatalf("second Unregister returned %v, want nil", got)
	}
	if r.Lookup(c.ID) != nil {
		t.Fatal("Lookup found an unregistered client")
	}
}

func TestAvailabilityQueue(t *testing.T) {
	q := NewAvailabilityQueue()

	for _, id := range []string{"a", "b", "c"} {
		if !q.Add(id) {
			t.Fatalf("Add(%s) = false", id)
		}
	}
	if q.Add("b") {
		t.Fatal("Add of an existing member should report false")
	}
	if !q.Remove("b") || q.Remove("b") {
		t.Fatal("Remove should succeed once")
	}

	got := q.Members()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("Members() = %v, want [a c]", got)
	}
	got[0] = "mutated"
	if !q.Contains("a") || q.Contains("mutated") {
		t.Fatal("Members should return a copy")
	}
}

func TestPairingTable(t *testing.T) {
	p := NewPairingTable()

	if err := p.Link("a", "a"); err == nil {
		t.Fatal("Link(a, a) should fail")
	}
	if err := p.Link("a", "b"); err != nil {
		t.Fatalf("Link(a, b): %v", err)
	}
	if err := p.Link("b", "c"); err == nil {
		t.Fatal("Link of an already paired client should fail")
	}
	if !p.Mutual("a", "b") || !p.Mutual("b", "a") {
		t.Fatal("a and b should be mutual")
	}

	partner, ok := p.Unlink("b")
	if !ok || partner != "a" {
		t.Fatalf("Unlink(b) = %q, %v", partner, ok)
	}
	if p.Has("a") || p.Has("b") || p.Len() != 0 {
		t.Fatal("Unlink should remove both entries")
	}
	if _, ok := p.Unlink("b"); ok {
		t.Fatal("Unlink of an unpaired client should report false")
	}
}

func TestPairingTableUnlinkOneSided(t *testing.T) {
	p := NewPairingTable()
	p.partners["a"] = "b"
	p.partners["b"] = "c"
	p.partners["c"] = "b"

	p.Unlink("a")

	if p.Has("a") {
		t.Fatal("a should be removed")
	}
	if !p.Mutual("b", "c") {
		t.Fatal("unrelated pairing b<->c must survive")
	}
}
