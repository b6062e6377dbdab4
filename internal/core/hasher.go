package core

import (
	"crypto/sha256"
	"encoding/binary"
)

const GenesisHashSeed = "PredictLedger:genesis:v1"

// StateHasher holds the tip of the state hash chain. Entry N is
// SHA-256(entry[N-1] || le64(N) || digest[N]); entry 0 is GenesisHash.
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: GenesisHash()}
}

func GenesisHash() [32]byte {
	return sha256.Sum256([]byte(GenesisHashSeed))
}

// ComputeHash appends the entry for sequence and returns it.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	buf := make([]byte, 0, len(h.prevHash)+8+len(stateDigest))
	buf = append(buf, h.prevHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(sequence))
	buf = append(buf, stateDigest...)

	h.prevHash = sha256.Sum256(buf)
	return h.prevHash
}

// GetPrevHash returns the chain tip
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// SetPrevHash moves the tip to a restored snapshot's hash
func (h *StateHasher) SetPrevHash(hash [32]byte) {
	h.prevHash = hash
}
