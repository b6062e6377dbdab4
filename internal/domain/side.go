package domain

import (
	"fmt"
	"strings"
)

// Side is one of the two outcomes of a market.
type Side uint8

const (
	Yes Side = iota
	No
)

func (s Side) String() string {
	switch s {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Opposite returns the other outcome.
func (s Side) Opposite() Side {
	if s == Yes {
		return No
	}
	return Yes
}

// Valid reports whether s is Yes or No.
func (s Side) Valid() bool {
	return s == Yes || s == No
}

// ParseSide accepts "yes"/"no" in any case.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes":
		return Yes, nil
	case "no":
		return No, nil
	default:
		return 0, fmt.Errorf("unknown side %q", v)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
