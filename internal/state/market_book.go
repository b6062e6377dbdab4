package state

import (
	"sort"
)

// MarketBook owns every market record and assigns market IDs
type MarketBook struct {
	markets map[uint64]*Market
	nextID  uint64
}

func NewMarketBook() *MarketBook {
	return &MarketBook{
		markets: make(map[uint64]*Market),
		nextID:  1,
	}
}

// NextID returns the ID the next market will receive
func (b *MarketBook) NextID() uint64 {
	return b.nextID
}

// Insert stores a market under the next ID and advances the counter
func (b *MarketBook) Insert(m *Market) uint64 {
	m.ID = b.nextID
	b.markets[m.ID] = m
	b.nextID++
	return m.ID
}

// Get returns the market or nil
func (b *MarketBook) Get(id uint64) *Market {
	return b.markets[id]
}

// All returns markets ordered by ID
func (b *MarketBook) All() []*Market {
	out := make([]*Market, 0, len(b.markets))
	for _, m := range b.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountOpen returns the number of markets accepting trades
func (b *MarketBook) CountOpen() int {
	n := 0
	for _, m := range b.markets {
		if m.IsOpen() {
			n++
		}
	}
	return n
}

// Restore replaces the book contents. nextID is raised past the highest ID.
func (b *MarketBook) Restore(markets []*Market, nextID uint64) {
	b.markets = make(map[uint64]*Market, len(markets))
	for _, m := range markets {
		b.markets[m.ID] = m
		if m.ID >= nextID {
			nextID = m.ID + 1
		}
	}
	if nextID == 0 {
		nextID = 1
	}
	b.nextID = nextID
}
