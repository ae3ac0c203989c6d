package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStatus is returned when a status is blank after normalisation.
var ErrInvalidStatus = errors.New("invalid status")

// Status is a trimmed, lower-cased, non-empty column label.
type Status struct {
	value string
}

// NewStatus normalises s and rejects blank input.
func NewStatus(s string) (Status, error) {
	v := normalizeStatus(s)
	if v == "" {
		return Status{}, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return Status{value: v}, nil
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// String returns the normalised value.
func (s Status) String() string {
	return s.value
}

// IsZero reports whether s was never set.
func (s Status) IsZero() bool {
	return s.value == ""
}

// Equal compares normalised values.
func (s Status) Equal(other Status) bool {
	return s.value == other.value
}

// In reports whether s is a member of set. Set entries are normalised before comparison.
func (s Status) In(set []string) bool {
	for _, v := range set {
		if normalizeStatus(v) == s.value {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the status as a plain string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON decodes and validates a status string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := NewStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
