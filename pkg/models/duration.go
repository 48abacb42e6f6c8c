package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration marshals to and from Go duration strings ("750ms", "1h30m") so
// definitions stay readable in JSON.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to unmarshal duration: %w", err)
	}

	switch value := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}

		d.Duration = parsed

		return nil
	case float64:
		// Bare numbers are treated as seconds.
		d.Duration = time.Duration(value * float64(time.Second))

		return nil
	default:
		return fmt.Errorf("duration must be a string or number, got %T", raw)
	}
}
