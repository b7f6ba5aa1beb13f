// Package cart holds the shopping cart state container.
//
// A Store owns the line items of one cart together with the derived item
// count and total. Every mutation updates the items and both aggregates in
// one critical section, then publishes the resulting View to subscribers.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// View is an immutable snapshot of a cart.
type View struct {
	Items   map[string]Line `json:"items"`
	Count   int             `json:"count"`
	Total   float64         `json:"total"`
	Version uint64          `json:"version"`
}

// Empty reports whether the view holds no line items.
func (v View) Empty() bool {
	return len(v.Items) == 0
}

func (v View) clone() View {
	items := make(map[string]Line, len(v.Items))
	for id, line := range v.Items {
		items[id] = line.clone()
	}
	v.Items = items
	return v
}

// Store is the cart state container. The zero value is not usable; call
// NewStore.
type Store struct {
	mu      sync.Mutex
	items   map[string]Line
	count   int
	total   float64
	version uint64

	subscribers map[uint64]func(View)
	nextSubID   uint64
}

func NewStore() *Store {
	return &Store{
		items:       make(map[string]Line),
		subscribers: make(map[uint64]func(View)),
	}
}

// Add inserts product with quantity 1, or increments the quantity of the
// existing entry with the same id. When the entry exists its fields are kept
// and the candidate's fields are discarded.
func (s *Store) Add(product Line) {
	s.mutate(func(items map[string]Line) bool {
		if existing, ok := items[product.ID]; ok {
			existing.Quantity++
			items[product.ID] = existing
			return true
		}
		line := product.clone()
		line.Quantity = 1
		items[product.ID] = line
		return true
	})
}

// Remove decrements the entry's quantity, deleting it when it reaches zero.
// Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mutate(func(items map[string]Line) bool {
		existing, ok := items[id]
		if !ok {
			return false
		}
		if existing.Quantity > 1 {
			existing.Quantity--
			items[id] = existing
			return true
		}
		delete(items, id)
		return true
	})
}

// Update sets the quantity of an existing entry. A quantity of zero or less
// removes the entry. Unknown ids are ignored.
func (s *Store) Update(id string, quantity int) {
	s.mutate(func(items map[string]Line) bool {
		existing, ok := items[id]
		if !ok {
			return false
		}
		if quantity <= 0 {
			delete(items, id)
			return true
		}
		if existing.Quantity == quantity {
			return false
		}
		existing.Quantity = quantity
		items[id] = existing
		return true
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func(items map[string]Line) bool {
		if len(items) == 0 {
			return false
		}
		for id := range items {
			delete(items, id)
		}
		return true
	})
}

// View returns a consistent copy of the current cart.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Len is the number of distinct line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn to receive the cart view after every mutation that
// changed the cart. fn runs on the mutating goroutine after the store lock
// is released; Version orders views. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(View)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) mutate(fn func(items map[string]Line) bool) {
	view, subs, changed := s.apply(fn)
	if !changed {
		return
	}
	for _, sub := range subs {
		sub(view.clone())
	}
}

// apply runs fn and the recompute under s.mu and collects the subscribers
// to notify once the lock is released.
func (s *Store) apply(fn func(items map[string]Line) bool) (View, []func(View), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(s.items) {
		return View{}, nil, false
	}
	s.recompute()
	s.version++

	subs := make([]func(View), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	return s.viewLocked(), subs, true
}

// recompute derives count and total from the items. Caller holds s.mu.
func (s *Store) recompute() {
	count := 0
	total := decimal.Zero
	for _, line := range s.items {
		count += line.Quantity
		total = total.Add(decimal.NewFromFloat(finite(line.Price)).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	s.count = count
	s.total = total.InexactFloat64()
}

func (s *Store) viewLocked() View {
	items := make(map[string]Line, len(s.items))
	for id, line := range s.items {
		items[id] = line.clone()
	}
	return View{
		Items:   items,
		Count:   s.count,
		Total:   s.total,
		Version: s.version,
	}
}
