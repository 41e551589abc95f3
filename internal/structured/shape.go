package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ShapeAttributes is a list that is either all strings or all integers.
// After unmarshalling Attributes holds a []string or an []int.
type ShapeAttributes struct {
	Attributes any `json:"attributes"`
}

var errMixedAttributes = errors.New("attributes must be all strings or all integers")

func (s *ShapeAttributes) UnmarshalJSON(data []byte) error {
	var raw struct {
		Attributes []any `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Attributes == nil {
		return errors.New("attributes is required")
	}
	v, err := normalizeAttributes(raw.Attributes)
	if err != nil {
		return err
	}
	s.Attributes = v
	return nil
}

// Validate checks the attribute list after manual construction.
func (s ShapeAttributes) Validate() error {
	switch a := s.Attributes.(type) {
	case []string, []int:
		return nil
	case []any:
		_, err := normalizeAttributes(a)
		return err
	default:
		return fmt.Errorf("attributes: unexpected type %T", s.Attributes)
	}
}

func normalizeAttributes(items []any) (any, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	if _, ok := items[0].(string); ok {
		out := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, errMixedAttributes
			}
			out[i] = s
		}
		return out, nil
	}

	out := make([]int, len(items))
	for i, it := range items {
		switch n := it.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("attribute %v is not an integer", n)
			}
			out[i] = int(n)
		case int:
			out[i] = n
		default:
			return nil, errMixedAttributes
		}
	}
	return out, nil
}
