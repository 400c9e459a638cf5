package insights

import (
	"encoding/json"
	"fmt"
	"strings"
)

const averagePrefix = "average_"

func marshalAverage(r AverageRow) ([]byte, error) {
	out := map[string]interface{}{"location": r.Group}
	out[averagePrefix+r.Attribute] = r.Average
	return json.Marshal(out)
}

func (r *AverageRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var row AverageRow
	for key, val := range raw {
		switch {
		case key == "location":
			if err := json.Unmarshal(val, &row.Group); err != nil {
				return fmt.Errorf("location: %w", err)
			}
		case strings.HasPrefix(key, averagePrefix):
			row.Attribute = strings.TrimPrefix(key, averagePrefix)
			if err := json.Unmarshal(val, &row.Average); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	*r = row
	return nil
}
