package obslog

import (
	"context"
	"sync"
	"testing"
)

func TestLocalIssuer_SequentialAndUnique(t *testing.T) {
	issuer := NewLocalIssuer()
	seen := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		id, err := issuer.NextID(context.Background())
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if id != uint64(i+1) {
			t.Fatalf("expected sequential ID %d, got %d", i+1, id)
		}
		if seen[id] {
			t.Fatalf("duplicate ID %d", id)
		}
		seen[id] = true
	}
}

func TestLocalIssuer_ConcurrentUse(t *testing.T) {
	issuer := NewLocalIssuer()
	const n = 200
	ids := make([]uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := issuer.NextID(context.Background())
			if err != nil {
				t.Errorf("NextID: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ID %d under concurrent use", id)
		}
		seen[id] = true
	}
}
