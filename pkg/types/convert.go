package types

import (
	"encoding/json"

	"github.com/spf13/cast"
)

// ToFloat64 converts a decoded JSON value (number, json.Number or numeric string) to float64
func ToFloat64(v any) (float64, error) {
	if n, ok := v.(json.Number); ok {
		return n.Float64()
	}
	return cast.ToFloat64E(v)
}

// ToString converts a decoded JSON scalar to its string form
func ToString(v any) (string, error) {
	if n, ok := v.(json.Number); ok {
		return n.String(), nil
	}
	return cast.ToStringE(v)
}
