package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// WorkflowContext is the insertion-ordered key/value state a run accumulates.
// Keys are only ever added or overwritten, never removed, so the history of a
// run can be replayed from its snapshots. Every mutating operation returns a
// new context value; the receiver is left untouched.
type WorkflowContext struct {
	keys   []string
	values map[string]any
}

func NewWorkflowContext() *WorkflowContext {
	return &WorkflowContext{
		keys:   make([]string, 0),
		values: make(map[string]any),
	}
}

// NewWorkflowContextFrom seeds a context with the given entries in sorted key
// order. Map iteration in Go is unordered; sorting keeps seeding deterministic.
func NewWorkflowContextFrom(seed map[string]any) *WorkflowContext {
	return NewWorkflowContext().Merge(seed)
}

func (c *WorkflowContext) Get(key string) (any, bool) {
	if c == nil || c.values == nil {
		return nil, false
	}

	value, ok := c.values[key]

	return value, ok
}

func (c *WorkflowContext) Has(key string) bool {
	_, ok := c.Get(key)

	return ok
}

func (c *WorkflowContext) Len() int {
	if c == nil {
		return 0
	}

	return len(c.keys)
}

// Keys returns the context keys in insertion order.
func (c *WorkflowContext) Keys() []string {
	if c == nil {
		return nil
	}

	keys := make([]string, len(c.keys))
	copy(keys, c.keys)

	return keys
}

// Map returns a plain copy of the context for template rendering and rule
// evaluation. Mutating the copy does not affect the context.
func (c *WorkflowContext) Map() map[string]any {
	if c == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}

	return out
}

func (c *WorkflowContext) Clone() *WorkflowContext {
	clone := NewWorkflowContext()

	if c == nil {
		return clone
	}

	clone.keys = make([]string, len(c.keys))
	copy(clone.keys, c.keys)

	clone.values = make(map[string]any, len(c.values))
	for k, v := range c.values {
		clone.values[k] = v
	}

	return clone
}

// Merge returns a new context with every entry of delta applied. Existing keys
// are overwritten in place; new keys are appended in sorted order so merging an
// unordered map stays deterministic.
func (c *WorkflowContext) Merge(delta map[string]any) *WorkflowContext {
	merged := c.Clone()

	newKeys := make([]string, 0, len(delta))

	for key := range delta {
		if !merged.has(key) {
			newKeys = append(newKeys, key)
		}
	}

	sort.Strings(newKeys)

	for key, value := range delta {
		merged.values[key] = value
	}

	merged.keys = append(merged.keys, newKeys...)

	return merged
}

func (c *WorkflowContext) has(key string) bool {
	_, ok := c.values[key]

	return ok
}

// MarshalJSON emits the context as a JSON object with keys in insertion order.
func (c *WorkflowContext) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal context key %q: %w", key, err)
		}

		valueJSON, err := json.Marshal(c.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal context value for %q: %w", key, err)
		}

		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valueJSON)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON restores the context preserving the key order of the document.
func (c *WorkflowContext) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	open, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("failed to decode context: %w", err)
	}

	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("context must be a JSON object, got %v", open)
	}

	c.keys = make([]string, 0)
	c.values = make(map[string]any)

	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("failed to decode context key: %w", err)
		}

		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("context key must be a string, got %v", token)
		}

		var value any

		err = decoder.Decode(&value)
		if err != nil {
			return fmt.Errorf("failed to decode context value for %q: %w", key, err)
		}

		if !c.has(key) {
			c.keys = append(c.keys, key)
		}

		c.values[key] = normalizeNumbers(value)
	}

	return nil
}

// normalizeNumbers converts json.Number values back to float64 so context
// entries compare equal regardless of whether they came from a document or
// from an in-process merge.
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}

		return v.String()
	case map[string]any:
		for k, nested := range v {
			v[k] = normalizeNumbers(nested)
		}

		return v
	case []any:
		for i, nested := range v {
			v[i] = normalizeNumbers(nested)
		}

		return v
	default:
		return value
	}
}
