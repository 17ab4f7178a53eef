package etl

import (
	"bytes"
	"encoding/json"
)

// Record is one incoming customer row before validation. Fields stay loose so
// malformed values become rejections instead of decode failures.
type Record struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar,omitempty"`
	Status     string `json:"status,omitempty"`
	TotalSpend Value  `json:"totalSpend,omitempty"`
	LastSeen   Value  `json:"lastSeen,omitempty"`
	JoinDate   Value  `json:"joinDate,omitempty"`
}

// Value holds a scalar JSON field as text. Strings, numbers and booleans are
// accepted; null is empty.
type Value string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
	default:
		*v = Value(data)
	}
	return nil
}
