package remote

import (
	"sort"
	"testing"
	"time"
)

func TestPushIDLength(t *testing.T) {
	id := PushID()
	if len(id) != 20 {
		t.Errorf("len = %d, want 20", len(id))
	}
	for _, ch := range id {
		found := false
		for _, a := range pushAlphabet {
			if ch == a {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("id %q contains %q outside the alphabet", id, ch)
		}
	}
}

func TestPushIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := PushID()
		if seen[id] {
			t.Fatalf("duplicate push id %q after %d allocations", id, i)
		}
		seen[id] = true
	}
}

func TestPushIDChronologicalOrder(t *testing.T) {
	first := PushID()
	time.Sleep(2 * time.Millisecond)
	second := PushID()
	if !(first < second) {
		t.Errorf("ids not time-ordered: %q >= %q", first, second)
	}
}

func TestPushIDSameMillisecondStillOrdered(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = PushID()
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("allocation order differs from lexical order at %d: %q vs %q", i, ids[i], sorted[i])
		}
	}
}
