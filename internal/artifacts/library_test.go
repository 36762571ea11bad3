package artifacts

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"framewright/internal/graph"
)

func TestSnapshotIsIsolated(t *testing.T) {
	lib := NewLibrary(graph.ReferenceArtifact{Handle: "portraits/char-00-front.png", Kind: graph.KindPortrait})
	snap := lib.Snapshot()
	lib.Append(graph.ReferenceArtifact{Handle: "cameras/cam-001.png", Kind: graph.KindCamera})
	if len(snap) != 1 || lib.Len() != 2 {
		t.Fatalf("snapshot len %d, library len %d", len(snap), lib.Len())
	}
	snap[0].Description = "mutated"
	if got, _ := lib.Lookup("portraits/char-00-front.png"); got.Description != "" {
		t.Fatal("snapshot mutation leaked into the library")
	}
}

func TestConcurrentAppendKeepsEveryItem(t *testing.T) {
	lib := NewLibrary()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lib.Append(graph.ReferenceArtifact{Handle: graph.Handle(fmt.Sprintf("frames/%d.png", i))})
			_ = lib.Snapshot()
		}()
	}
	wg.Wait()
	seen := map[graph.Handle]bool{}
	for _, item := range lib.Snapshot() {
		seen[item.Handle] = true
	}
	if len(seen) != 20 {
		t.Fatalf("got %d distinct items", len(seen))
	}
}

func TestLookupMissing(t *testing.T) {
	_, ok := NewLibrary().Lookup("nope")
	if diff := cmp.Diff(false, ok); diff != "" {
		t.Fatal(diff)
	}
}
