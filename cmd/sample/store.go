package main

import (
	"cmp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Item is a catalog entry.
type Item struct {
	ID        string    `json:"id" doc:"Item ID"`
	Name      string    `json:"name" doc:"Display name"`
	Price     float64   `json:"price" doc:"Unit price" minimum:"0"`
	Tags      []string  `json:"tags,omitempty" doc:"Free-form labels"`
	Owner     string    `json:"owner,omitempty" doc:"Subject that created the item"`
	CreatedAt time.Time `json:"created_at"`
}

// itemStore is an in-memory, concurrency-safe item table.
type itemStore struct {
	mu     sync.RWMutex
	items  map[string]*Item
	nextID int
	now    func() time.Time
}

func newItemStore() *itemStore {
	return &itemStore{
		items:  make(map[string]*Item),
		nextID: 1,
		now:    time.Now,
	}
}

func (s *itemStore) list(tag string, offset, limit int) ([]Item, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := lo.FilterMap(lo.Values(s.items), func(it *Item, _ int) (Item, bool) {
		return *it, tag == "" || slices.Contains(it.Tags, tag)
	})
	slices.SortFunc(all, func(a, b Item) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})

	total := len(all)
	if offset > total {
		offset = total
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total
}

func (s *itemStore) get(id string) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	cp := *it
	return &cp, true
}

func (s *itemStore) create(in NewItem, owner string) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &Item{
		ID:        strconv.Itoa(s.nextID),
		Name:      in.Name,
		Price:     in.Price,
		Tags:      lo.Uniq(in.Tags),
		Owner:     owner,
		CreatedAt: s.now().UTC(),
	}
	s.nextID++
	s.items[it.ID] = it
	cp := *it
	return &cp
}

func (s *itemStore) update(id string, in NewItem) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	it.Name = in.Name
	it.Price = in.Price
	it.Tags = lo.Uniq(in.Tags)
	cp := *it
	return &cp, true
}

func (s *itemStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}
