package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func entry(itemID uint, action CartAction) CartEntry {
	return CartEntry{
		ItemID:    itemID,
		RfidUid:   fmt.Sprintf("TAG-%d", itemID),
		ItemName:  fmt.Sprintf("Item %d", itemID),
		Action:    action,
		ScannedAt: time.Now().UTC(),
	}
}

func TestCartStore_AddIsIdempotent(t *testing.T) {
	store := NewCartStore()

	if !store.AddEntry(1, entry(10, ActionBorrow)) {
		t.Fatal("First add should succeed")
	}

	// Any number of repeated taps of the same tag must not add a second line
	for i := 0; i < 5; i++ {
		if store.AddEntry(1, entry(10, ActionBorrow)) {
			t.Fatal("Duplicate add should be a no-op")
		}
	}

	cart := store.GetCart(1)
	if cart == nil {
		t.Fatal("Cart should exist")
	}
	if len(cart.Entries) != 1 {
		t.Errorf("Expected exactly 1 entry, got %d", len(cart.Entries))
	}
}

func TestCartStore_PreservesScanOrder(t *testing.T) {
	store := NewCartStore()

	store.AddEntry(1, entry(3, ActionBorrow))
	store.AddEntry(1, entry(1, ActionReturn))
	store.AddEntry(1, entry(2, ActionBorrow))

	cart := store.GetCart(1)
	want := []uint{3, 1, 2}
	for i, id := range want {
		if cart.Entries[i].ItemID != id {
			t.Errorf("Entry %d: expected item %d, got %d", i, id, cart.Entries[i].ItemID)
		}
	}
}

func TestCartStore_RemoveEntry(t *testing.T) {
	store := NewCartStore()
	store.AddEntry(1, entry(10, ActionBorrow))
	store.AddEntry(1, entry(11, ActionBorrow))

	if !store.RemoveEntry(1, 10) {
		t.Error("Remove of existing entry should return true")
	}
	if store.RemoveEntry(1, 10) {
		t.Error("Second remove of same entry should return false")
	}
	if store.RemoveEntry(2, 11) {
		t.Error("Remove for user without a cart should return false")
	}
	if store.Contains(1, 10) {
		t.Error("Removed item should not be in cart")
	}
	if !store.Contains(1, 11) {
		t.Error("Remaining item should still be in cart")
	}
}

func TestCartStore_ClearResetsSessionStart(t *testing.T) {
	store := NewCartStore()
	store.AddEntry(1, entry(10, ActionBorrow))

	first := store.GetCart(1)
	if first == nil {
		t.Fatal("Cart should exist after first scan")
	}

	store.Clear(1)
	if store.GetCart(1) != nil {
		t.Fatal("Cart should be absent after clear")
	}

	// Next scan creates a brand new cart with a fresh StartedAt
	time.Sleep(5 * time.Millisecond)
	store.AddEntry(1, entry(20, ActionBorrow))
	second := store.GetCart(1)
	if second == nil {
		t.Fatal("Cart should exist after new scan")
	}
	if !second.StartedAt.After(first.StartedAt) {
		t.Error("New cart should have a fresh StartedAt")
	}
	if len(second.Entries) != 1 || second.Entries[0].ItemID != 20 {
		t.Errorf("New cart should only hold the new entry, got %+v", second.Entries)
	}
}

func TestCartStore_UsersAreIndependent(t *testing.T) {
	store := NewCartStore()
	store.AddEntry(1, entry(10, ActionBorrow))
	store.AddEntry(2, entry(10, ActionReturn))

	store.Clear(1)
	if store.GetCart(2) == nil {
		t.Error("Clearing one user's cart must not touch another's")
	}
}

func TestCartStore_ConcurrentScans(t *testing.T) {
	store := NewCartStore()

	var wg sync.WaitGroup
	added := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// 10 distinct items, each scanned 10 times concurrently
			added <- store.AddEntry(7, entry(uint(n%10), ActionBorrow))
		}(i)
	}
	wg.Wait()
	close(added)

	successes := 0
	for ok := range added {
		if ok {
			successes++
		}
	}
	if successes != 10 {
		t.Errorf("Expected 10 successful adds, got %d", successes)
	}

	cart := store.GetCart(7)
	if len(cart.Entries) != 10 {
		t.Errorf("Expected 10 unique entries, got %d", len(cart.Entries))
	}
}
