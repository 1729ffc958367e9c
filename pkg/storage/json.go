package storage

import (
	"encoding/json"
	"fmt"
)

// JSONStore wraps a Backend and stores values as JSON.
type JSONStore struct {
	backend Backend
}

func NewJSONStore(backend Backend) *JSONStore {
	return &JSONStore{backend: backend}
}

// Backend returns the underlying backend
func (j *JSONStore) Backend() Backend {
	return j.backend
}

func (j *JSONStore) PutJSON(bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return j.backend.Put(bucket, key, data)
}

// GetJSON decodes the value at key into v. It reports false if the key is missing.
func (j *JSONStore) GetJSON(bucket, key []byte, v any) (bool, error) {
	data, err := j.backend.Get(bucket, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return true, nil
}

// ForEachJSON visits every value in bucket as raw JSON in key order.
func (j *JSONStore) ForEachJSON(bucket []byte, fn func(key []byte, raw json.RawMessage) error) error {
	return j.backend.ForEach(bucket, func(k, v []byte) error {
		return fn(k, json.RawMessage(v))
	})
}

func (j *JSONStore) Close() error {
	return j.backend.Close()
}
