package system

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Blackboard is the scratch space shared by all systems of a scheduler. It
// lives for the scheduler's lifetime and is only touched from the tick
// thread, so it carries no lock.
type Blackboard struct {
	data    map[string]any
	version int64
	stop    bool
}

func NewBlackboard() *Blackboard {
	return &Blackboard{data: make(map[string]any)}
}

// Set stores a value under key.
func (bb *Blackboard) Set(key string, value any) {
	bb.data[key] = value
	bb.version++
}

func (bb *Blackboard) Get(key string) (any, bool) {
	value, exists := bb.data[key]
	return value, exists
}

func (bb *Blackboard) GetString(key string) (string, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return "", false
	}

	str, ok := value.(string)
	return str, ok
}

// GetInt accepts float64 values too, which is what JSON round trips produce.
func (bb *Blackboard) GetInt(key string) (int, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (bb *Blackboard) GetFloat(key string) (float64, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (bb *Blackboard) GetBool(key string) (bool, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return false, false
	}

	b, ok := value.(bool)
	return b, ok
}

// GetDuration reads a time.Duration, or a duration string such as "250ms".
func (bb *Blackboard) GetDuration(key string) (time.Duration, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		return d, err == nil
	default:
		return 0, false
	}
}

func (bb *Blackboard) Has(key string) bool {
	_, exists := bb.data[key]
	return exists
}

func (bb *Blackboard) Delete(key string) {
	delete(bb.data, key)
	bb.version++
}

// Keys returns all keys, sorted.
func (bb *Blackboard) Keys() []string {
	keys := make([]string, 0, len(bb.data))
	for key := range bb.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Version increases on every write.
func (bb *Blackboard) Version() int64 {
	return bb.version
}

// Clear removes all data. A pending stop request survives.
func (bb *Blackboard) Clear() {
	bb.data = make(map[string]any)
	bb.version++
}

// Snapshot returns a shallow copy of the data.
func (bb *Blackboard) Snapshot() map[string]any {
	out := make(map[string]any, len(bb.data))
	for key, value := range bb.data {
		out[key] = value
	}
	return out
}

type blackboardExport struct {
	Data    map[string]any `json:"data"`
	Version int64          `json:"version"`
}

func (bb *Blackboard) ToJSON() ([]byte, error) {
	return json.Marshal(blackboardExport{Data: bb.data, Version: bb.version})
}

// FromJSON replaces the data with an export produced by ToJSON.
func (bb *Blackboard) FromJSON(data []byte) error {
	var export blackboardExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("failed to unmarshal blackboard data: %w", err)
	}

	if export.Data == nil {
		export.Data = make(map[string]any)
	}
	bb.data = export.Data
	bb.version = export.Version
	return nil
}

// Stop asks the run loop to exit once the current tick and its flush are
// done. The remaining systems of the tick still run.
func (bb *Blackboard) Stop() {
	bb.stop = true
}

func (bb *Blackboard) StopRequested() bool {
	return bb.stop
}

func (bb *Blackboard) resetStop() {
	bb.stop = false
}
