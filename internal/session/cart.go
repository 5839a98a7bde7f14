package session

import (
	"log"
	"sync"
	"time"
)

// CartAction is the pending action a scan implied for an item
type CartAction string

const (
	ActionBorrow CartAction = "Borrow"
	ActionReturn CartAction = "Return"
)

// CartEntry is a single scan-derived pending action
type CartEntry struct {
	ItemID    uint       `json:"itemId"`
	RfidUid   string     `json:"rfidUid"`
	ItemName  string     `json:"itemName"`
	Action    CartAction `json:"action"`
	ScannedAt time.Time  `json:"scannedAt"`
}

// Cart is a snapshot of one user's pending cart
type Cart struct {
	UserID    uint        `json:"userId"`
	StartedAt time.Time   `json:"sessionStarted"`
	Entries   []CartEntry `json:"items"`
}

type cartState struct {
	mu        sync.Mutex
	startedAt time.Time
	entries   []CartEntry
}

// CartStore accumulates pending borrow/return actions per user. It is the
// debounce boundary: a repeated scan of a tag already in the cart is a no-op.
// Carts live only in process memory and are cleared on commit or logout.
type CartStore struct {
	mu    sync.RWMutex
	carts map[uint]*cartState
}

// NewCartStore creates an empty CartStore
func NewCartStore() *CartStore {
	return &CartStore{
		carts: make(map[uint]*cartState),
	}
}

func (s *CartStore) cart(userID uint, create bool) *cartState {
	s.mu.RLock()
	c, ok := s.carts[userID]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.carts[userID]; ok {
		return c
	}
	c = &cartState{startedAt: time.Now().UTC()}
	s.carts[userID] = c
	return c
}

// AddEntry appends an entry to the user's cart, lazily creating the cart on
// first use. Returns false without modifying anything if the cart already
// holds an entry for the same item (duplicate physical tap).
func (s *CartStore) AddEntry(userID uint, entry CartEntry) bool {
	c := s.cart(userID, true)
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.ItemID == entry.ItemID {
			log.Printf("Item %d already in cart for user %d, ignoring duplicate scan", entry.ItemID, userID)
			return false
		}
	}

	c.entries = append(c.entries, entry)
	log.Printf("Added item %d to cart for user %d. Action: %s", entry.ItemID, userID, entry.Action)
	return true
}

// GetCart returns a snapshot of the user's cart, or nil if none exists
func (s *CartStore) GetCart(userID uint) *Cart {
	c := s.cart(userID, false)
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]CartEntry, len(c.entries))
	copy(entries, c.entries)
	return &Cart{
		UserID:    userID,
		StartedAt: c.startedAt,
		Entries:   entries,
	}
}

// RemoveEntry removes the entry for itemID from the user's cart.
// Returns false if the cart or the entry does not exist.
func (s *CartStore) RemoveEntry(userID uint, itemID uint) bool {
	c := s.cart(userID, false)
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.ItemID == itemID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			log.Printf("Removed item %d from cart for user %d", itemID, userID)
			return true
		}
	}
	return false
}

// Clear deletes the cart entirely so the next scan records a fresh StartedAt
func (s *CartStore) Clear(userID uint) {
	s.mu.Lock()
	c, ok := s.carts[userID]
	if ok {
		delete(s.carts, userID)
	}
	s.mu.Unlock()

	if ok {
		c.mu.Lock()
		n := len(c.entries)
		c.mu.Unlock()
		log.Printf("Cleared cart for user %d. Had %d items", userID, n)
	}
}

// Contains reports whether the user's cart holds an entry for itemID
func (s *CartStore) Contains(userID uint, itemID uint) bool {
	c := s.cart(userID, false)
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}
