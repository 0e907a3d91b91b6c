package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value stores a nil history as an empty JSON array.
func (h StatusHistory) Value() (driver.Value, error) {
	entries := []StatusHistoryEntry(h)
	if entries == nil {
		entries = []StatusHistoryEntry{}
	}
	return json.Marshal(entries)
}

func (h *StatusHistory) Scan(value any) error {
	var entries []StatusHistoryEntry
	if err := scanJSON(value, &entries); err != nil {
		return fmt.Errorf("scan status history: %w", err)
	}
	*h = entries
	return nil
}

func (a AddressSnapshot) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *AddressSnapshot) Scan(value any) error {
	var snapshot AddressSnapshot
	if err := scanJSON(value, &snapshot); err != nil {
		return fmt.Errorf("scan address snapshot: %w", err)
	}
	*a = snapshot
	return nil
}

// scanJSON decodes a JSON/JSONB column into dest. SQL NULL leaves dest at
// its zero value. Postgres drivers hand back []byte, SQLite may hand back
// a string.
func scanJSON[T any](value any, dest *T) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
