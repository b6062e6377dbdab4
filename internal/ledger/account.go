package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeMarket
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeBalance AccountSubType = iota

	// Market sub-types
	SubTypeMarketPool
	SubTypeMarketFees

	// External sub-types
	SubTypeExternalDeposits
)

// AssetID maps asset strings to numeric IDs
type AssetID uint16

// SettlementAsset is the only asset markets trade in.
const SettlementAsset = "ICP"

var (
	assetToID = map[string]AssetID{
		"ICP": 1,
	}
	idToAsset = map[AssetID]string{
		1: "ICP",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// SettlementAssetID returns the numeric ID of SettlementAsset.
func SettlementAssetID() AssetID {
	return assetToID[SettlementAsset]
}

// AccountKey is the in-memory key for balance tracking
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, big-endian market ID for markets
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for a user's spendable balance
func NewUserAccountKey(userID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  SubTypeBalance,
		AssetID:  assetID,
	}
}

// NewMarketAccountKey creates a key for a market-owned account (pool or fees)
func NewMarketAccountKey(marketID uint64, subType AccountSubType, assetID AssetID) AccountKey {
	var entityID [16]byte
	binary.BigEndian.PutUint64(entityID[8:], marketID)
	return AccountKey{
		Scope:    AccountScopeMarket,
		EntityID: entityID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// MarketID decodes the market ID of a market-scoped key.
func (k AccountKey) MarketID() uint64 {
	return binary.BigEndian.Uint64(k.EntityID[8:])
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopeMarket:
		return fmt.Sprintf("market:%d:%s:%s", k.MarketID(), k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeBalance:
		return "balance"
	case SubTypeMarketPool:
		return "pool"
	case SubTypeMarketFees:
		return "fees"
	case SubTypeExternalDeposits:
		return "deposits"
	default:
		return "unknown"
	}
}
