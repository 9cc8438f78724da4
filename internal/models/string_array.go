package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringArray is a text column holding a JSON list of strings. Rule lists
// written by older editors as "required|max:255" are split on the pipe.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	items := make([]string, 0, len(a))
	for _, s := range a {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: scan into nil pointer")
	}
	var raw string
	switch v := value.(type) {
	case nil:
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.StringArray: unsupported scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "null":
		*a = StringArray{}
		return nil
	case strings.HasPrefix(raw, "["):
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return fmt.Errorf("models.StringArray: %w", err)
		}
		*a = arr
		return nil
	case strings.HasPrefix(raw, `"`):
		if err := json.Unmarshal([]byte(raw), &raw); err != nil {
			return fmt.Errorf("models.StringArray: %w", err)
		}
	}
	*a = splitPiped(raw)
	return nil
}

func splitPiped(raw string) StringArray {
	out := StringArray{}
	for _, part := range strings.Split(raw, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
