package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeList accepts a bare array or an object carrying the array under one
// of keys. A missing or null list decodes as empty.
func decodeList[T any](raw []byte, keys ...string) ([]T, error) {
	out := []T{}
	if isNull(raw) {
		return out, nil
	}
	if isObject(raw) {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		raw = nil
		for _, k := range keys {
			if v, ok := env[k]; ok && !isNull(v) {
				raw = v
				break
			}
		}
		if raw == nil {
			return out, nil
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// decodeOne accepts a bare object or an object nesting it under one of keys.
func decodeOne[T any](raw []byte, keys ...string) (*T, error) {
	if isNull(raw) {
		return nil, nil
	}
	if isObject(raw) {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		for _, k := range keys {
			if v, ok := env[k]; ok && isObject(v) {
				raw = v
				break
			}
		}
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return out, nil
}
