package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when model text contains no JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\s*```")

// Validator is implemented by outputs that check themselves after decoding.
type Validator interface {
	Validate() error
}

// ParseJSON decodes the first JSON object in text into T. A fenced code
// block wins over bare braces. T is validated when it implements Validator.
func ParseJSON[T any](text string) (T, error) {
	var out T
	candidate := ""
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	} else if i := strings.Index(text, "{"); i >= 0 {
		candidate = text[i:]
	}
	if candidate == "" {
		return out, ErrNoJSON
	}

	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("validate response: %w", err)
		}
	}
	return out, nil
}
