package state

import (
	"PredictLedger/internal/domain"
	"bytes"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// PositionKey identifies a position
type PositionKey struct {
	UserID   uuid.UUID
	MarketID uint64
}

// PositionManager owns every position record
type PositionManager struct {
	positions map[PositionKey]*Position
	byMarket  map[uint64]map[uuid.UUID]*Position
}

func NewPositionManager() *PositionManager {
	return &PositionManager{
		positions: make(map[PositionKey]*Position),
		byMarket:  make(map[uint64]map[uuid.UUID]*Position),
	}
}

// GetPosition returns existing position or nil
func (pm *PositionManager) GetPosition(userID uuid.UUID, marketID uint64) *Position {
	return pm.positions[PositionKey{UserID: userID, MarketID: marketID}]
}

// GetOrCreatePosition returns the existing position or creates an empty one
func (pm *PositionManager) GetOrCreatePosition(userID uuid.UUID, marketID uint64) *Position {
	key := PositionKey{UserID: userID, MarketID: marketID}
	pos := pm.positions[key]

	if pos == nil {
		pos = &Position{
			UserID:   userID,
			MarketID: marketID,
		}
		pm.put(pos)
	}

	return pos
}

func (pm *PositionManager) put(pos *Position) {
	pm.positions[PositionKey{UserID: pos.UserID, MarketID: pos.MarketID}] = pos
	m := pm.byMarket[pos.MarketID]
	if m == nil {
		m = make(map[uuid.UUID]*Position)
		pm.byMarket[pos.MarketID] = m
	}
	m[pos.UserID] = pos
}

// UserPositions returns every position of a user ordered by market ID
func (pm *PositionManager) UserPositions(userID uuid.UUID) []*Position {
	var out []*Position
	for key, pos := range pm.positions {
		if key.UserID == userID {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// MarketPositions returns every position in a market ordered by user ID
func (pm *PositionManager) MarketPositions(marketID uint64) []*Position {
	m := pm.byMarket[marketID]
	out := make([]*Position, 0, len(m))
	for _, pos := range m {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].UserID[:], out[j].UserID[:]) < 0
	})
	return out
}

// WinningSupply sums the side tokens still held across every position in a market.
// Burned tokens of earlier claimants are no longer counted.
func (pm *PositionManager) WinningSupply(marketID uint64, side domain.Side) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, pos := range pm.byMarket[marketID] {
		total = total.Add(sdkmath.NewIntFromUint64(pos.Tokens(side)))
	}
	return total
}

// All returns every position, ordered by market then user
func (pm *PositionManager) All() []*Position {
	out := make([]*Position, 0, len(pm.positions))
	for _, pos := range pm.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketID != out[j].MarketID {
			return out[i].MarketID < out[j].MarketID
		}
		return bytes.Compare(out[i].UserID[:], out[j].UserID[:]) < 0
	})
	return out
}

// Restore replaces all positions
func (pm *PositionManager) Restore(positions []*Position) {
	pm.positions = make(map[PositionKey]*Position, len(positions))
	pm.byMarket = make(map[uint64]map[uuid.UUID]*Position)
	for _, pos := range positions {
		pm.put(pos)
	}
}
