package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so chain configuration files can express it
// as "500ms"/"2s" style strings instead of raw nanosecond integers. The
// environment variables (the *_MS ones) carry whole milliseconds instead.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.fromAny(v)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	return d.fromAny(v)
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.fromAny(string(text))
}

func (d *Duration) fromAny(v interface{}) error {
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
		return nil
	case int64:
		d.Duration = time.Duration(val)
		return nil
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", v)
	}
}
