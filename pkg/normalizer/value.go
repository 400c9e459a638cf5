package normalizer

import (
	"encoding/json"
	"strconv"
)

// Value is the outcome of normalizing a raw field: a finite float, or absent.
type Value struct {
	Float float64
	Valid bool
}

// Absent is the explicit "no value" marker.
var Absent = Value{}

func Of(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Ptr returns nil for an absent value, which is how nullable columns are stored.
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float
	return &f
}

func (v Value) String() string {
	if !v.Valid {
		return "absent"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Absent
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}
