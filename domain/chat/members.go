package chat

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Members is a caller supplied membership list.
// On the wire each entry is either an identity string or an object carrying "_id".
type Members []Identity

type memberObject struct {
	ID json.RawMessage `json:"_id"`
}

func (m *Members) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Members, 0, len(raw))
	for i, item := range raw {
		id, err := decodeMember(item)
		if err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
		out = append(out, id)
	}
	*m = out
	return nil
}

func decodeMember(item json.RawMessage) (Identity, error) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return "", fmt.Errorf("empty member")
	}
	if item[0] == '{' {
		var obj memberObject
		if err := json.Unmarshal(item, &obj); err != nil {
			return "", err
		}
		if len(obj.ID) == 0 {
			return "", fmt.Errorf("member object without _id")
		}
		return decodeMember(obj.ID)
	}
	var id string
	if err := json.Unmarshal(item, &id); err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("empty member id")
	}
	return Identity(id), nil
}

// Unique returns members with duplicates removed, first occurrence wins.
func (m Members) Unique() Members {
	return lo.Uniq(m)
}

// Contains reports whether id belongs to the list.
func (m Members) Contains(id Identity) bool {
	return lo.Contains(m, id)
}
